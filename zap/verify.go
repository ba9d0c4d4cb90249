// Package zap verifies signed nostr events attached to LNURL-pay invoice
// requests (NIP-57 zap requests).
package zap

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/nbd-wtf/go-nostr"
)

// KindZapRequest is the event kind of a NIP-57 zap request.
const KindZapRequest = 9734

var (
	// ErrMalformed is returned when the event JSON can't be parsed or is
	// missing fields needed to check its signature.
	ErrMalformed = errors.New("malformed event")

	// ErrInvalidSignature is returned when the event's id or signature
	// does not match its content.
	ErrInvalidSignature = errors.New("invalid event signature")

	// ErrNotZapRequest is returned by CheckZapRequest for events that are
	// validly signed but don't form a usable zap request.
	ErrNotZapRequest = errors.New("not a zap request")
)

// Verify parses eventJSON and checks its id and schnorr signature against
// the declared public key. The parsed event is returned unmodified.
func Verify(eventJSON string) (*nostr.Event, error) {
	if err := checkPresent(eventJSON); err != nil {
		return nil, err
	}

	var evt nostr.Event
	if err := json.Unmarshal([]byte(eventJSON), &evt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if err := checkFields(&evt); err != nil {
		return nil, err
	}

	if evt.GetID() != evt.ID {
		return nil, fmt.Errorf("%w: id does not commit to event",
			ErrInvalidSignature)
	}

	ok, err := evt.CheckSignature()
	switch {
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)

	case !ok:
		return nil, ErrInvalidSignature
	}

	log.Debugf("Verified event %s from %s", evt.ID, evt.PubKey)

	return &evt, nil
}

// Description returns the serialization of a verified event that is
// committed to by the invoice description hash.
func Description(evt *nostr.Event) string {
	return evt.String()
}

// eventFields are the members every NIP-01 event must carry.
var eventFields = []string{
	"id", "pubkey", "created_at", "kind", "tags", "content", "sig",
}

// checkPresent makes sure no event member is absent or null, since decoding
// would silently fill those in with zero values.
func checkPresent(eventJSON string) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(eventJSON), &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	for _, name := range eventFields {
		v, ok := raw[name]
		if !ok || string(v) == "null" {
			return fmt.Errorf("%w: missing %s field", ErrMalformed,
				name)
		}
	}

	return nil
}

func checkFields(evt *nostr.Event) error {
	fields := []struct {
		name  string
		value string
		size  int
	}{
		{"id", evt.ID, 32},
		{"pubkey", evt.PubKey, 32},
		{"sig", evt.Sig, 64},
	}
	for _, f := range fields {
		b, err := hex.DecodeString(f.value)
		if err != nil || len(b) != f.size {
			return fmt.Errorf("%w: bad %s field", ErrMalformed,
				f.name)
		}
	}

	return nil
}

// CheckZapRequest applies the NIP-57 rules a recipient checks before issuing
// an invoice: the event must be a zap request and, when it names an amount,
// that amount must equal the requested one.
func CheckZapRequest(evt *nostr.Event, amountMsat uint64) error {
	if evt.Kind != KindZapRequest {
		return fmt.Errorf("%w: kind %d", ErrNotZapRequest, evt.Kind)
	}

	if evt.Tags.GetFirst([]string{"p"}) == nil {
		return fmt.Errorf("%w: missing p tag", ErrNotZapRequest)
	}

	amtTag := evt.Tags.GetFirst([]string{"amount"})
	if amtTag == nil {
		return nil
	}

	amt, err := strconv.ParseUint(amtTag.Value(), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad amount tag", ErrNotZapRequest)
	}
	if amt != amountMsat {
		return fmt.Errorf("%w: amount tag %d does not match %d",
			ErrNotZapRequest, amt, amountMsat)
	}

	return nil
}
