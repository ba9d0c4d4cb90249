package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ellemouton/lnurlpay"
	"github.com/ellemouton/lnurlpay/zap"
	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
)

// parseSecretKey accepts a hex or nsec encoded nostr secret key.
func parseSecretKey(key string) (string, error) {
	if !strings.HasPrefix(key, "nsec") {
		return key, nil
	}

	prefix, value, err := nip19.Decode(key)
	if err != nil {
		return "", fmt.Errorf("invalid nsec: %w", err)
	}
	if prefix != "nsec" {
		return "", fmt.Errorf("expected nsec, got %s", prefix)
	}

	sk, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("unexpected nsec payload %T", value)
	}

	return sk, nil
}

// newZapRequest builds and signs a kind 9734 event asking recipient for a
// zap of amt.
func newZapRequest(secretKey, recipient, content string,
	amt lnurlpay.Amount, relays []string) (*nostr.Event, error) {

	sk, err := parseSecretKey(secretKey)
	if err != nil {
		return nil, err
	}

	pub, err := nostr.GetPublicKey(sk)
	if err != nil {
		return nil, fmt.Errorf("invalid zap key: %w", err)
	}

	relayTag := nostr.Tag{"relays"}
	relayTag = append(relayTag, relays...)

	evt := &nostr.Event{
		PubKey:    pub,
		CreatedAt: nostr.Now(),
		Kind:      zap.KindZapRequest,
		Content:   content,
		Tags: nostr.Tags{
			{"p", recipient},
			{"amount", strconv.FormatUint(uint64(amt), 10)},
			relayTag,
		},
	}
	if err := evt.Sign(sk); err != nil {
		return nil, fmt.Errorf("could not sign zap request: %w", err)
	}

	return evt, nil
}
