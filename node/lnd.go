package node

import (
	"context"
	"crypto/sha256"
	"fmt"
	"math"

	"github.com/lightninglabs/lndclient"
	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/lightningnetwork/lnd/lntypes"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// LndDialer connects to lnd's gRPC interface.
type LndDialer struct {
	Host        string
	TLSPath     string
	MacaroonDir string

	// MacaroonFile overrides the macaroon file name inside MacaroonDir.
	// An invoice macaroon is all that is needed.
	MacaroonFile string

	Network lndclient.Network
}

// A compile time check to ensure LndDialer implements Dialer.
var _ Dialer = (*LndDialer)(nil)

// Dial opens a new gRPC connection to lnd.
func (d *LndDialer) Dial(_ context.Context) (Conn, error) {
	var opts []lndclient.BasicClientOption
	if d.MacaroonFile != "" {
		opts = append(opts, lndclient.MacFilename(d.MacaroonFile))
	}

	conn, err := lndclient.NewBasicConn(
		d.Host, d.TLSPath, d.MacaroonDir, string(d.Network), opts...,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to lnd at %s: %w",
			d.Host, err)
	}

	return &lndConn{
		conn:   conn,
		client: lnrpc.NewLightningClient(conn),
	}, nil
}

type lndConn struct {
	conn   *grpc.ClientConn
	client lnrpc.LightningClient
}

// lndInvoice maps an invoice request onto lnd's AddInvoice message. lnd has
// no invoice labels so the label is only logged.
func lndInvoice(req *InvoiceRequest) (*lnrpc.Invoice, error) {
	if req.AmountMsat > math.MaxInt64 {
		return nil, fmt.Errorf("amount %v too large", req.AmountMsat)
	}
	if len(req.Fallbacks) > 1 {
		return nil, fmt.Errorf("lnd supports a single fallback "+
			"address, got %d", len(req.Fallbacks))
	}

	inv := &lnrpc.Invoice{
		ValueMsat: int64(req.AmountMsat),
	}

	if req.DescHashOnly {
		hash := sha256.Sum256([]byte(req.Description))
		inv.DescriptionHash = hash[:]
	} else {
		inv.Memo = req.Description
	}

	if req.Expiry != nil {
		inv.Expiry = int64(req.Expiry.Seconds())
	}
	if len(req.Fallbacks) == 1 {
		inv.FallbackAddr = req.Fallbacks[0]
	}
	if req.Preimage != nil {
		inv.RPreimage = req.Preimage[:]
	}
	if req.ExposePrivateChannels != nil {
		inv.Private = *req.ExposePrivateChannels
	}
	if req.Cltv != nil {
		inv.CltvExpiry = uint64(*req.Cltv)
	}

	return inv, nil
}

// CreateInvoice calls AddInvoice.
func (c *lndConn) CreateInvoice(ctx context.Context,
	req *InvoiceRequest) (Response, error) {

	inv, err := lndInvoice(req)
	if err != nil {
		return nil, err
	}

	log.Debugf("Adding invoice label=%s amt=%v", req.Label, req.AmountMsat)

	resp, err := c.client.AddInvoice(ctx, inv)
	if err != nil {
		return nil, lndError(err)
	}

	if resp.PaymentRequest == "" {
		return &OtherResponse{Name: "unknown"}, nil
	}

	hash, err := lntypes.MakeHash(resp.RHash)
	if err != nil {
		return nil, fmt.Errorf("%w: bad r_hash: %v",
			ErrUnexpectedResponseKind, err)
	}

	return &InvoiceResponse{
		Bolt11:      resp.PaymentRequest,
		PaymentHash: hash,
	}, nil
}

// lndError turns application level gRPC statuses into an *RPCError and
// leaves transport failures as they are.
func lndError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
		return fmt.Errorf("lnd unreachable: %w", err)

	default:
		return &RPCError{
			Code:    int64(st.Code()),
			Message: st.Message(),
		}
	}
}

// Close closes the gRPC connection.
func (c *lndConn) Close() error {
	return c.conn.Close()
}
