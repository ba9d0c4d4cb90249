package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ellemouton/lnurlpay"
)

// resolveTarget turns a bech32 LNURL, a lightning: URI, an lnurlp:// URL or
// a lightning address into the URL of the service's descriptor.
func resolveTarget(target string, noTLS bool) (string, error) {
	protocol := "https"
	if noTLS {
		protocol = "http"
	}

	var (
		endpoint string
		err      error
	)
	switch {
	case strings.HasPrefix(target, "lnurlp://"):
		endpoint = strings.Replace(target, "lnurlp", protocol, 1)

	case strings.HasPrefix(strings.ToUpper(target), "LNURL1"):
		endpoint, err = lnurlpay.DecodeURL(target)
		if err != nil {
			return "", fmt.Errorf("error decoding LNURL: %w", err)
		}

	case strings.HasPrefix(target, "lightning:"):
		endpoint, err = lnurlpay.DecodeURL(
			strings.TrimPrefix(target, "lightning:"),
		)
		if err != nil {
			return "", fmt.Errorf("error decoding LNURL: %w", err)
		}

	case strings.Contains(target, "@"):
		parts := strings.Split(target, "@")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return "", fmt.Errorf("invalid LN address. Expected " +
				"the form <username>@<domain>")
		}

		username, domain := parts[0], parts[1]
		endpoint = fmt.Sprintf("%s://%s/.well-known/lnurlp/%s",
			protocol, domain, username)

	default:
		return "", fmt.Errorf("unsupported scheme")
	}

	// Ensure that the url uses tls if we have not set --notls.
	if !noTLS && !strings.HasPrefix(endpoint, "https") {
		return "", fmt.Errorf("url is not https")
	}

	return endpoint, nil
}

// plainTextMetadata extracts the text/plain entry of the descriptor's
// metadata string.
func plainTextMetadata(metadata string) (string, error) {
	var entries [][]string
	if err := json.Unmarshal([]byte(metadata), &entries); err != nil {
		return "", fmt.Errorf("invalid metadata: %w", err)
	}

	for _, e := range entries {
		if len(e) == 2 && e[0] == "text/plain" {
			return e[1], nil
		}
	}

	return "", fmt.Errorf("response metadata does not contain the " +
		"required 'text/plain' field")
}

// callbackURL appends the amount and optional zap request to the
// descriptor's callback.
func callbackURL(callback string, amt lnurlpay.Amount,
	zapRequest string) (string, error) {

	u, err := url.Parse(callback)
	if err != nil {
		return "", fmt.Errorf("invalid callback: %w", err)
	}

	q := u.Query()
	q.Set("amount", strconv.FormatUint(uint64(amt), 10))
	if zapRequest != "" {
		q.Set("nostr", zapRequest)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}
