package zap

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/nbd-wtf/go-nostr/nip19"
)

// ParsePubKey validates the public key that the service advertises as its
// zap receipt signer. It accepts either 32 byte x-only hex or an npub and
// returns the lower case hex form.
func ParsePubKey(key string) (string, error) {
	key = strings.TrimSpace(key)

	if strings.HasPrefix(key, "npub") {
		prefix, value, err := nip19.Decode(key)
		if err != nil {
			return "", fmt.Errorf("invalid npub: %w", err)
		}
		if prefix != "npub" {
			return "", fmt.Errorf("expected npub, got %s", prefix)
		}

		hexKey, ok := value.(string)
		if !ok {
			return "", fmt.Errorf("unexpected npub payload %T",
				value)
		}
		key = hexKey
	}

	raw, err := hex.DecodeString(key)
	if err != nil {
		return "", fmt.Errorf("invalid pubkey hex: %w", err)
	}

	if _, err := schnorr.ParsePubKey(raw); err != nil {
		return "", fmt.Errorf("invalid pubkey: %w", err)
	}

	return hex.EncodeToString(raw), nil
}
