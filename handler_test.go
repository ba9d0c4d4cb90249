package lnurlpay

import (
	"context"
	"crypto/sha256"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/ellemouton/lnurlpay/node"
	"github.com/ellemouton/lnurlpay/zap"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/lightningnetwork/lnd/zpay32"
	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/require"
)

// mockDialer records invoice requests and answers them with respond.
type mockDialer struct {
	mu      sync.Mutex
	reqs    []*node.InvoiceRequest
	dials   int
	closes  int
	dialErr error
	respond func(req *node.InvoiceRequest) (node.Response, error)
}

func (m *mockDialer) Dial(context.Context) (node.Conn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dialErr != nil {
		return nil, m.dialErr
	}
	m.dials++

	return &mockConn{dialer: m}, nil
}

func (m *mockDialer) calls() []*node.InvoiceRequest {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]*node.InvoiceRequest(nil), m.reqs...)
}

type mockConn struct {
	dialer *mockDialer
}

func (c *mockConn) CreateInvoice(_ context.Context,
	req *node.InvoiceRequest) (node.Response, error) {

	c.dialer.mu.Lock()
	c.dialer.reqs = append(c.dialer.reqs, req)
	respond := c.dialer.respond
	c.dialer.mu.Unlock()

	if respond == nil {
		return &node.InvoiceResponse{Bolt11: "lnbc1test"}, nil
	}

	return respond(req)
}

func (c *mockConn) Close() error {
	c.dialer.mu.Lock()
	defer c.dialer.mu.Unlock()

	c.dialer.closes++

	return nil
}

// signedZapRequest returns a zap request for amt signed by a fresh key.
func signedZapRequest(t *testing.T, amt uint64) *nostr.Event {
	t.Helper()

	sk := nostr.GeneratePrivateKey()
	pk, err := nostr.GetPublicKey(sk)
	require.NoError(t, err)

	evt := &nostr.Event{
		PubKey:    pk,
		CreatedAt: nostr.Now(),
		Kind:      zap.KindZapRequest,
		Tags: nostr.Tags{
			{"p", testNostrPubKey},
			{"amount", strconv.FormatUint(amt, 10)},
			{"relays", "wss://relay.example.com"},
		},
		Content: "zap!",
	}
	require.NoError(t, evt.Sign(sk))

	return evt
}

func strPtr(s string) *string {
	return &s
}

func TestHandleNoZap(t *testing.T) {
	cfg := newTestServiceConfig(t, &Config{})
	dialer := &mockDialer{}
	h := NewInvoiceHandler(cfg, dialer)

	res, err := h.Handle(context.Background(), &InvoiceRequestParams{
		Amount: 1000,
	})
	require.NoError(t, err)
	require.Equal(t, &InvoiceResult{PR: "lnbc1test", Routes: []string{}},
		res)

	reqs := dialer.calls()
	require.Len(t, reqs, 1)
	req := reqs[0]

	// The invoice commits to exactly the advertised metadata.
	require.Equal(t, BuildDescriptor(cfg).Metadata, req.Description)
	require.Equal(t, `[["text/plain","Hello world"]]`, req.Description)
	require.Equal(t, lnwire.MilliSatoshi(1000), req.AmountMsat)
	require.True(t, req.DescHashOnly)
	require.Nil(t, req.Expiry)
	require.Nil(t, req.Fallbacks)
	require.Nil(t, req.Preimage)
	require.Nil(t, req.ExposePrivateChannels)
	require.Nil(t, req.Cltv)

	// A fresh connection is used and released.
	require.Equal(t, 1, dialer.dials)
	require.Equal(t, 1, dialer.closes)
}

func TestHandleUniqueLabels(t *testing.T) {
	cfg := newTestServiceConfig(t, &Config{})
	dialer := &mockDialer{}
	h := NewInvoiceHandler(cfg, dialer)

	const n = 20
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := h.Handle(
				context.Background(),
				&InvoiceRequestParams{Amount: 1},
			)
			errs <- err
		}()
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-errs)
	}

	labels := make(map[string]struct{})
	for _, req := range dialer.calls() {
		require.Len(t, req.Label, 36)
		labels[req.Label] = struct{}{}
	}
	require.Len(t, labels, n)
}

func TestHandleZap(t *testing.T) {
	cfg := newTestServiceConfig(t, &Config{NostrPubKey: testNostrPubKey})
	dialer := &mockDialer{}
	h := NewInvoiceHandler(cfg, dialer)

	evt := signedZapRequest(t, 1000)

	_, err := h.Handle(context.Background(), &InvoiceRequestParams{
		Amount: 1000,
		Nostr:  strPtr(evt.String()),
	})
	require.NoError(t, err)

	reqs := dialer.calls()
	require.Len(t, reqs, 1)
	require.Equal(t, evt.String(), reqs[0].Description)
}

func TestHandleRejections(t *testing.T) {
	tampered := func(t *testing.T) *string {
		evt := signedZapRequest(t, 500)
		last := evt.Sig[len(evt.Sig)-1]
		repl := "0"
		if last == '0' {
			repl = "1"
		}
		evt.Sig = evt.Sig[:len(evt.Sig)-1] + repl

		return strPtr(evt.String())
	}

	tests := []struct {
		name     string
		params   func(t *testing.T) *InvoiceRequestParams
		wantKind ErrorKind
		wantErr  error
	}{
		{
			name: "zero amount",
			params: func(*testing.T) *InvoiceRequestParams {
				return &InvoiceRequestParams{Amount: 0}
			},
			wantKind: KindMalformedRequest,
			wantErr:  ErrAmountOutOfRange,
		},
		{
			name: "amount above max",
			params: func(*testing.T) *InvoiceRequestParams {
				return &InvoiceRequestParams{
					Amount: AmountFromMsat(MaxSendable + 1),
				}
			},
			wantKind: KindMalformedRequest,
			wantErr:  ErrAmountOutOfRange,
		},
		{
			name: "tampered signature",
			params: func(t *testing.T) *InvoiceRequestParams {
				return &InvoiceRequestParams{
					Amount: 500, Nostr: tampered(t),
				}
			},
			wantKind: KindVerificationFailure,
			wantErr:  zap.ErrInvalidSignature,
		},
		{
			name: "malformed event",
			params: func(*testing.T) *InvoiceRequestParams {
				return &InvoiceRequestParams{
					Amount: 500, Nostr: strPtr("{"),
				}
			},
			wantKind: KindMalformedRequest,
			wantErr:  zap.ErrMalformed,
		},
		{
			name: "zap amount mismatch",
			params: func(t *testing.T) *InvoiceRequestParams {
				evt := signedZapRequest(t, 1000)
				return &InvoiceRequestParams{
					Amount: 2000, Nostr: strPtr(evt.String()),
				}
			},
			wantKind: KindVerificationFailure,
			wantErr:  zap.ErrNotZapRequest,
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			cfg := newTestServiceConfig(t, &Config{})
			dialer := &mockDialer{}
			h := NewInvoiceHandler(cfg, dialer)

			_, err := h.Handle(
				context.Background(), test.params(t),
			)
			require.ErrorIs(t, err, test.wantErr)
			require.Equal(t, test.wantKind, errorKind(err))

			// The node is never contacted.
			require.Empty(t, dialer.calls())
			require.Zero(t, dialer.dials)
		})
	}
}

func TestHandleUpstreamFailures(t *testing.T) {
	transportErr := errors.New("connection reset")

	tests := []struct {
		name    string
		dialer  *mockDialer
		wantErr error
	}{
		{
			name:    "dial failure",
			dialer:  &mockDialer{dialErr: transportErr},
			wantErr: transportErr,
		},
		{
			name: "transport failure",
			dialer: &mockDialer{
				respond: func(*node.InvoiceRequest) (
					node.Response, error) {

					return nil, transportErr
				},
			},
			wantErr: transportErr,
		},
		{
			name: "node error",
			dialer: &mockDialer{
				respond: func(*node.InvoiceRequest) (
					node.Response, error) {

					return nil, &node.RPCError{
						Code: 900, Message: "dup",
					}
				},
			},
		},
		{
			name: "wrong response kind",
			dialer: &mockDialer{
				respond: func(*node.InvoiceRequest) (
					node.Response, error) {

					return &node.OtherResponse{
						Name: "getinfo",
					}, nil
				},
			},
			wantErr: node.ErrUnexpectedResponseKind,
		},
		{
			name: "nil invoice response",
			dialer: &mockDialer{
				respond: func(*node.InvoiceRequest) (
					node.Response, error) {

					return (*node.InvoiceResponse)(nil), nil
				},
			},
			wantErr: node.ErrUnexpectedResponseKind,
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			cfg := newTestServiceConfig(t, &Config{})
			h := NewInvoiceHandler(cfg, test.dialer)

			_, err := h.Handle(
				context.Background(),
				&InvoiceRequestParams{Amount: 1000},
			)
			require.Error(t, err)
			require.Equal(t, KindUpstreamFailure, errorKind(err))
			if test.wantErr != nil {
				require.ErrorIs(t, err, test.wantErr)
			}

			// Every opened connection is closed again.
			require.Equal(t, test.dialer.dials, test.dialer.closes)
		})
	}
}

func TestParseInvoiceRequestParams(t *testing.T) {
	p, err := ParseInvoiceRequestParams(url.Values{"amount": {"1000"}})
	require.NoError(t, err)
	require.EqualValues(t, 1000, p.Amount)
	require.Nil(t, p.Nostr)

	p, err = ParseInvoiceRequestParams(url.Values{
		"amount": {"1000"}, "nostr": {`{"kind":9734}`},
	})
	require.NoError(t, err)
	require.Equal(t, `{"kind":9734}`, *p.Nostr)

	_, err = ParseInvoiceRequestParams(url.Values{})
	require.ErrorIs(t, err, ErrMissingAmount)
	require.Equal(t, KindMalformedRequest, errorKind(err))

	_, err = ParseInvoiceRequestParams(url.Values{"amount": {"-1"}})
	require.Error(t, err)
	require.Equal(t, KindMalformedRequest, errorKind(err))
}

// testInvoice returns a bolt11 invoice signed by a random key.
func testInvoice(t *testing.T, amt lnwire.MilliSatoshi,
	description string) string {

	t.Helper()

	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	inv, err := zpay32.NewInvoice(
		&chaincfg.RegressionNetParams, [32]byte{1},
		time.Unix(1700000000, 0), zpay32.Amount(amt),
		zpay32.DescriptionHash(sha256.Sum256([]byte(description))),
	)
	require.NoError(t, err)

	bolt11, err := inv.Encode(zpay32.MessageSigner{
		SignCompact: func(msg []byte) ([]byte, error) {
			hash := chainhash.HashB(msg)
			return ecdsa.SignCompact(key, hash, true), nil
		},
	})
	require.NoError(t, err)

	return bolt11
}

func TestHandleInvoiceCheck(t *testing.T) {
	cfg := newTestServiceConfig(t, &Config{
		InvoiceNetwork: &chaincfg.RegressionNetParams,
	})

	tests := []struct {
		name    string
		bolt11  func(t *testing.T, req *node.InvoiceRequest) string
		wantErr bool
	}{
		{
			name: "matching invoice",
			bolt11: func(t *testing.T,
				req *node.InvoiceRequest) string {

				return testInvoice(
					t, req.AmountMsat, req.Description,
				)
			},
		},
		{
			name: "wrong amount",
			bolt11: func(t *testing.T,
				req *node.InvoiceRequest) string {

				return testInvoice(
					t, req.AmountMsat+1, req.Description,
				)
			},
			wantErr: true,
		},
		{
			name: "wrong description",
			bolt11: func(t *testing.T,
				req *node.InvoiceRequest) string {

				return testInvoice(t, req.AmountMsat, "other")
			},
			wantErr: true,
		},
		{
			name: "garbage",
			bolt11: func(*testing.T, *node.InvoiceRequest) string {
				return "lnbcrt1garbage"
			},
			wantErr: true,
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			var bolt11 string
			dialer := &mockDialer{
				respond: func(req *node.InvoiceRequest) (
					node.Response, error) {

					bolt11 = test.bolt11(t, req)
					return &node.InvoiceResponse{
						Bolt11: bolt11,
					}, nil
				},
			}
			h := NewInvoiceHandler(cfg, dialer)

			res, err := h.Handle(
				context.Background(),
				&InvoiceRequestParams{Amount: 21000},
			)
			if test.wantErr {
				require.ErrorIs(t, err, ErrInvoiceMismatch)
				require.Equal(
					t, KindUpstreamFailure, errorKind(err),
				)
				return
			}
			require.NoError(t, err)
			require.Equal(t, bolt11, res.PR)
			require.True(t, strings.HasPrefix(res.PR, "lnbcrt"))
		})
	}
}
