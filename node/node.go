// Package node contains the clients used to ask a Lightning node for
// invoices. Every invoice request gets its own connection: a Dialer opens a
// Conn, the caller makes its call and closes it again.
package node

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightningnetwork/lnd/lnwire"
)

// ErrUnexpectedResponseKind is returned when the node answers a call with
// a response of a different kind than the call asked for.
var ErrUnexpectedResponseKind = errors.New("unexpected response kind")

// Kind identifies the kind of a node response.
type Kind string

const (
	// KindInvoice is the response to an invoice creation call.
	KindInvoice Kind = "invoice"
)

// InvoiceRequest holds the parameters of an invoice creation call. Pointer
// and slice fields left nil are not sent and the node uses its defaults.
type InvoiceRequest struct {
	AmountMsat  lnwire.MilliSatoshi
	Description string

	// Label keys the invoice on the node and must be unique per call.
	Label string

	Expiry                *time.Duration
	Fallbacks             []string
	Preimage              *lntypes.Preimage
	ExposePrivateChannels *bool
	Cltv                  *uint32

	// DescHashOnly commits only to the sha256 of Description in the
	// invoice instead of embedding the description itself.
	DescHashOnly bool
}

// Response is the result of a node call. It is one of *InvoiceResponse or
// *OtherResponse.
type Response interface {
	Kind() Kind
}

// InvoiceResponse is returned for a successful invoice creation call.
type InvoiceResponse struct {
	Bolt11      string
	PaymentHash lntypes.Hash
	ExpiresAt   time.Time
}

// Kind returns KindInvoice.
func (r *InvoiceResponse) Kind() Kind {
	return KindInvoice
}

// OtherResponse is any response that the client could not map to a known
// kind. Raw carries the undecoded payload for logging.
type OtherResponse struct {
	Name string
	Raw  []byte
}

// Kind returns the name the node reported for the response.
func (r *OtherResponse) Kind() Kind {
	if r == nil {
		return ""
	}

	return Kind(r.Name)
}

// RPCError is an application level error reported by the node.
type RPCError struct {
	Code    int64
	Message string
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	return fmt.Sprintf("node rpc error %d: %s", e.Code, e.Message)
}

// Conn is a single connection to the node.
type Conn interface {
	// CreateInvoice asks the node to create an invoice. A transport
	// failure or node error is returned as an error.
	CreateInvoice(ctx context.Context, req *InvoiceRequest) (Response,
		error)

	// Close releases the connection.
	Close() error
}

// Dialer opens connections to the node.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// ExpectInvoice narrows a response to an *InvoiceResponse, returning
// ErrUnexpectedResponseKind for anything else.
func ExpectInvoice(resp Response) (*InvoiceResponse, error) {
	switch r := resp.(type) {
	case *InvoiceResponse:
		if r == nil || r.Bolt11 == "" {
			return nil, fmt.Errorf("%w: invoice without bolt11",
				ErrUnexpectedResponseKind)
		}
		return r, nil

	case nil:
		return nil, fmt.Errorf("%w: empty response",
			ErrUnexpectedResponseKind)

	default:
		return nil, fmt.Errorf("%w: got %q, want %q",
			ErrUnexpectedResponseKind, resp.Kind(), KindInvoice)
	}
}
