package lnurlpay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ellemouton/lnurlpay/zap"
	"github.com/lightningnetwork/lnd/lnwire"
)

const (
	// MinSendable is the smallest amount the service advertises.
	MinSendable lnwire.MilliSatoshi = 1

	// MaxSendable is the largest amount the service advertises, 100
	// million sats.
	MaxSendable lnwire.MilliSatoshi = 100_000_000_000

	// metadataMimeType is the mime type of the description entry in the
	// metadata array.
	metadataMimeType = "text/plain"
)

// Config holds the user supplied service options.
type Config struct {
	// BaseURL is the URL the endpoints are reachable under. The callback
	// URL is BaseURL resolved against "invoice", so a base path needs a
	// trailing slash.
	BaseURL string

	// Description is shown by the payer's wallet.
	Description string

	// NostrPubKey enables zaps when set. Hex or npub.
	NostrPubKey string

	// InvoiceNetwork enables checking every invoice the node returns
	// against the request when set.
	InvoiceNetwork *chaincfg.Params
}

// ServiceConfig is the validated service configuration. It is built once at
// startup and never modified, so it is shared by all requests without
// locking.
type ServiceConfig struct {
	baseURL     *url.URL
	callback    string
	description string
	metadata    string
	nostrPubKey string
	network     *chaincfg.Params
}

// NewServiceConfig validates cfg.
func NewServiceConfig(cfg *Config) (*ServiceConfig, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, configErr(fmt.Errorf("invalid base url: %w", err))
	}
	if !base.IsAbs() || (base.Scheme != "http" && base.Scheme != "https") {
		return nil, configErr(fmt.Errorf("base url %q must be an "+
			"absolute http(s) url", cfg.BaseURL))
	}
	if base.Host == "" {
		return nil, configErr(fmt.Errorf("base url %q has no host",
			cfg.BaseURL))
	}

	if cfg.Description == "" {
		return nil, configErr(fmt.Errorf("description must be set"))
	}

	metadata, err := encodeMetadata(cfg.Description)
	if err != nil {
		return nil, configErr(err)
	}

	var pubKey string
	if cfg.NostrPubKey != "" {
		pubKey, err = zap.ParsePubKey(cfg.NostrPubKey)
		if err != nil {
			return nil, configErr(fmt.Errorf("invalid nostr "+
				"pubkey: %w", err))
		}
	}

	return &ServiceConfig{
		baseURL:     base,
		callback:    resolve(base, "invoice"),
		description: cfg.Description,
		metadata:    metadata,
		nostrPubKey: pubKey,
		network:     cfg.InvoiceNetwork,
	}, nil
}

func configErr(err error) error {
	return &Error{Kind: KindConfiguration, Err: err}
}

// resolve resolves ref against base the way a browser would.
func resolve(base *url.URL, ref string) string {
	return base.ResolveReference(&url.URL{Path: ref}).String()
}

// encodeMetadata returns the LUD-06 metadata string for description. The
// same string is hashed into invoices that carry no zap request.
func encodeMetadata(description string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	err := enc.Encode([][2]string{{metadataMimeType, description}})
	if err != nil {
		return "", fmt.Errorf("unable to encode metadata: %w", err)
	}

	return string(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

// Description returns the configured description text.
func (c *ServiceConfig) Description() string {
	return c.description
}

// Metadata returns the encoded metadata string.
func (c *ServiceConfig) Metadata() string {
	return c.metadata
}

// CallbackURL returns the absolute URL of the invoice endpoint.
func (c *ServiceConfig) CallbackURL() string {
	return c.callback
}

// EndpointURL returns the absolute URL of the given endpoint.
func (c *ServiceConfig) EndpointURL(endpoint string) string {
	return resolve(c.baseURL, endpoint)
}

// NostrPubKey returns the zap signer key, if one is configured.
func (c *ServiceConfig) NostrPubKey() (string, bool) {
	return c.nostrPubKey, c.nostrPubKey != ""
}

// InvoiceNetwork returns the network invoices are checked against, or nil
// if returned invoices are not checked.
func (c *ServiceConfig) InvoiceNetwork() *chaincfg.Params {
	return c.network
}
