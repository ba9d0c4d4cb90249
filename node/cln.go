package node

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/lightningnetwork/lnd/lntypes"
)

// CLNDialer connects to Core Lightning's JSON-RPC unix socket.
type CLNDialer struct {
	// RPCFile is the path of the node's lightning-rpc socket.
	RPCFile string
}

// A compile time check to ensure CLNDialer implements Dialer.
var _ Dialer = (*CLNDialer)(nil)

// Dial opens a new socket connection to the node.
func (d *CLNDialer) Dial(ctx context.Context) (Conn, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", d.RPCFile)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to %s: %w",
			d.RPCFile, err)
	}

	return newCLNConn(conn), nil
}

type clnConn struct {
	conn   net.Conn
	dec    *json.Decoder
	nextID atomic.Uint64
}

func newCLNConn(conn net.Conn) *clnConn {
	return &clnConn{
		conn: conn,
		dec:  json.NewDecoder(conn),
	}
}

type clnRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      uint64      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type clnResponse struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int64  `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type clnInvoiceParams struct {
	AmountMsat            uint64   `json:"amount_msat"`
	Label                 string   `json:"label"`
	Description           string   `json:"description"`
	Expiry                *uint64  `json:"expiry,omitempty"`
	Fallbacks             []string `json:"fallbacks,omitempty"`
	Preimage              string   `json:"preimage,omitempty"`
	ExposePrivateChannels *bool    `json:"exposeprivatechannels,omitempty"`
	Cltv                  *uint32  `json:"cltv,omitempty"`
	DescHashOnly          *bool    `json:"deschashonly,omitempty"`
}

type clnInvoiceResult struct {
	Bolt11      string `json:"bolt11"`
	PaymentHash string `json:"payment_hash"`
	ExpiresAt   int64  `json:"expires_at"`
}

func newCLNInvoiceParams(req *InvoiceRequest) *clnInvoiceParams {
	params := &clnInvoiceParams{
		AmountMsat:            uint64(req.AmountMsat),
		Label:                 req.Label,
		Description:           req.Description,
		Fallbacks:             req.Fallbacks,
		ExposePrivateChannels: req.ExposePrivateChannels,
		Cltv:                  req.Cltv,
	}
	if req.Expiry != nil {
		secs := uint64(req.Expiry.Seconds())
		params.Expiry = &secs
	}
	if req.Preimage != nil {
		params.Preimage = req.Preimage.String()
	}
	if req.DescHashOnly {
		descHashOnly := true
		params.DescHashOnly = &descHashOnly
	}

	return params
}

// CreateInvoice calls the node's invoice method.
func (c *clnConn) CreateInvoice(ctx context.Context,
	req *InvoiceRequest) (Response, error) {

	raw, err := c.call(ctx, "invoice", newCLNInvoiceParams(req))
	if err != nil {
		return nil, err
	}

	var result clnInvoiceResult
	if err := json.Unmarshal(raw, &result); err != nil ||
		result.Bolt11 == "" {

		return &OtherResponse{Name: "unknown", Raw: raw}, nil
	}

	hash, err := lntypes.MakeHashFromStr(result.PaymentHash)
	if err != nil {
		return nil, fmt.Errorf("%w: bad payment_hash: %v",
			ErrUnexpectedResponseKind, err)
	}

	return &InvoiceResponse{
		Bolt11:      result.Bolt11,
		PaymentHash: hash,
		ExpiresAt:   time.Unix(result.ExpiresAt, 0),
	}, nil
}

// call sends a single JSON-RPC request and waits for its reply.
func (c *clnConn) call(ctx context.Context, method string,
	params interface{}) (json.RawMessage, error) {

	// Unblock any pending read or write once the context is done.
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Now())
	})
	defer stop()

	id := c.nextID.Add(1)
	req := clnRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  params,
	}
	if err := json.NewEncoder(c.conn).Encode(&req); err != nil {
		return nil, c.ctxErr(ctx, fmt.Errorf("unable to send %s "+
			"request: %w", method, err))
	}

	var resp clnResponse
	if err := c.dec.Decode(&resp); err != nil {
		return nil, c.ctxErr(ctx, fmt.Errorf("unable to read %s "+
			"response: %w", method, err))
	}

	if resp.ID != id {
		return nil, fmt.Errorf("%w: response id %d for request %d",
			ErrUnexpectedResponseKind, resp.ID, id)
	}

	if resp.Error != nil {
		return nil, &RPCError{
			Code:    resp.Error.Code,
			Message: resp.Error.Message,
		}
	}

	if len(bytes.TrimSpace(resp.Result)) == 0 {
		return nil, fmt.Errorf("%w: %s response without result",
			ErrUnexpectedResponseKind, method)
	}

	return resp.Result, nil
}

func (c *clnConn) ctxErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %v", ctxErr, err)
	}

	return err
}

// Close closes the socket.
func (c *clnConn) Close() error {
	return c.conn.Close()
}
