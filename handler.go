package lnurlpay

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"net/url"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ellemouton/lnurlpay/node"
	"github.com/ellemouton/lnurlpay/zap"
	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/lightningnetwork/lnd/zpay32"
)

// InvoiceRequestParams are the query parameters of the callback request.
type InvoiceRequestParams struct {
	// Amount is the requested amount in millisatoshi.
	Amount Amount

	// Nostr is the raw JSON of a signed zap request, if one was sent.
	Nostr *string
}

// ParseInvoiceRequestParams reads the callback parameters from a query
// string.
func ParseInvoiceRequestParams(q url.Values) (*InvoiceRequestParams, error) {
	if !q.Has("amount") {
		return nil, newError(
			KindMalformedRequest, "missing amount", ErrMissingAmount,
		)
	}

	amt, err := ParseAmount(q.Get("amount"))
	if err != nil {
		return nil, newError(KindMalformedRequest, "invalid amount", err)
	}

	params := &InvoiceRequestParams{Amount: amt}
	if q.Has("nostr") {
		nostr := q.Get("nostr")
		params.Nostr = &nostr
	}

	return params, nil
}

// InvoiceHandler turns callback requests into invoices. It holds no state
// besides its immutable configuration, so one handler serves any number of
// concurrent requests.
type InvoiceHandler struct {
	cfg    *ServiceConfig
	dialer node.Dialer

	// newLabel returns a unique invoice label.
	newLabel func() (string, error)
}

// NewInvoiceHandler returns a handler that asks the node behind dialer for
// invoices.
func NewInvoiceHandler(cfg *ServiceConfig,
	dialer node.Dialer) *InvoiceHandler {

	return &InvoiceHandler{
		cfg:    cfg,
		dialer: dialer,
		newLabel: func() (string, error) {
			id, err := uuid.NewRandom()
			if err != nil {
				return "", err
			}

			return id.String(), nil
		},
	}
}

// Handle validates params, asks the node for an invoice and returns it. All
// failures are returned as *Error.
func (h *InvoiceHandler) Handle(ctx context.Context,
	params *InvoiceRequestParams) (*InvoiceResult, error) {

	amt := params.Amount.MilliSatoshi()
	if amt < MinSendable || amt > MaxSendable {
		return nil, newError(
			KindMalformedRequest,
			fmt.Sprintf("amount must be between %d and %d msat",
				MinSendable, MaxSendable),
			fmt.Errorf("%w: %v", ErrAmountOutOfRange, amt),
		)
	}

	description, err := h.description(params)
	if err != nil {
		return nil, err
	}

	label, err := h.newLabel()
	if err != nil {
		return nil, newError(
			KindInternal, "", fmt.Errorf("unable to create "+
				"label: %w", err),
		)
	}

	req := &node.InvoiceRequest{
		AmountMsat:   amt,
		Description:  description,
		Label:        label,
		DescHashOnly: true,
	}

	invoice, err := h.createInvoice(ctx, req)
	if err != nil {
		log.Warnf("Invoice %s for %v failed: %v", label, amt, err)

		return nil, newError(
			KindUpstreamFailure, "unable to create invoice", err,
		)
	}

	if chainParams := h.cfg.InvoiceNetwork(); chainParams != nil {
		err := checkInvoice(invoice.Bolt11, req, chainParams)
		if err != nil {
			return nil, newError(
				KindUpstreamFailure, "unable to create "+
					"invoice", err,
			)
		}
	}

	log.Infof("Created invoice %s for %v (hash=%v, zap=%v)", label, amt,
		invoice.PaymentHash, params.Nostr != nil)

	return &InvoiceResult{
		PR:     invoice.Bolt11,
		Routes: []string{},
	}, nil
}

// description returns the text the invoice commits to: the metadata string
// from the descriptor, or the zap request itself if one was sent.
func (h *InvoiceHandler) description(params *InvoiceRequestParams) (string,
	error) {

	if params.Nostr == nil {
		return h.cfg.Metadata(), nil
	}

	evt, err := zap.Verify(*params.Nostr)
	switch {
	case errors.Is(err, zap.ErrMalformed):
		return "", newError(
			KindMalformedRequest, "malformed zap request", err,
		)

	case err != nil:
		return "", newError(
			KindVerificationFailure, "invalid zap request", err,
		)
	}

	if err := zap.CheckZapRequest(evt, uint64(params.Amount)); err != nil {
		return "", newError(
			KindVerificationFailure, "invalid zap request", err,
		)
	}

	return zap.Description(evt), nil
}

// createInvoice makes the invoice call on its own node connection, which is
// closed again before returning.
func (h *InvoiceHandler) createInvoice(ctx context.Context,
	req *node.InvoiceRequest) (*node.InvoiceResponse, error) {

	conn, err := h.dialer.Dial(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Warnf("Unable to close node connection: %v", err)
		}
	}()

	resp, err := conn.CreateInvoice(ctx, req)
	if err != nil {
		return nil, err
	}

	return node.ExpectInvoice(resp)
}

// checkInvoice decodes bolt11 and makes sure it commits to the requested
// amount and description.
func checkInvoice(bolt11 string, req *node.InvoiceRequest,
	chainParams *chaincfg.Params) error {

	inv, err := zpay32.Decode(bolt11, chainParams)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvoiceMismatch, err)
	}

	if inv.MilliSat == nil || *inv.MilliSat != req.AmountMsat {
		return fmt.Errorf("%w: amount %v, want %v", ErrInvoiceMismatch,
			invoiceAmount(inv.MilliSat), req.AmountMsat)
	}

	hash := sha256.Sum256([]byte(req.Description))
	if inv.DescriptionHash == nil ||
		!bytes.Equal(inv.DescriptionHash[:], hash[:]) {

		return fmt.Errorf("%w: description hash", ErrInvoiceMismatch)
	}

	return nil
}

func invoiceAmount(amt *lnwire.MilliSatoshi) string {
	if amt == nil {
		return "any"
	}

	return amt.String()
}
