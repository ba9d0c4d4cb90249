package lnurlpay

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/lightningnetwork/lnd/lnwire"
)

// Amount is a millisatoshi amount as it appears on the wire. It is encoded
// as a plain JSON integer and maps one to one onto lnwire.MilliSatoshi.
type Amount uint64

// DecodeAmount converts a wire level millisatoshi count into the amount type
// used when talking to the node. It never fails and never scales.
func DecodeAmount(msat uint64) lnwire.MilliSatoshi {
	return lnwire.MilliSatoshi(msat)
}

// EncodeAmount is the exact inverse of DecodeAmount.
func EncodeAmount(amt lnwire.MilliSatoshi) uint64 {
	return uint64(amt)
}

// AmountFromMsat wraps a node amount for serialization.
func AmountFromMsat(amt lnwire.MilliSatoshi) Amount {
	return Amount(EncodeAmount(amt))
}

// MilliSatoshi returns the amount in the node's representation.
func (a Amount) MilliSatoshi() lnwire.MilliSatoshi {
	return DecodeAmount(uint64(a))
}

// ParseAmount parses the decimal string form of an amount, as found in the
// callback query string.
func ParseAmount(s string) (Amount, error) {
	msat, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}

	return Amount(msat), nil
}

// MarshalJSON encodes the amount as a bare integer.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatUint(uint64(a), 10)), nil
}

// UnmarshalJSON accepts only non-negative JSON integers.
func (a *Amount) UnmarshalJSON(b []byte) error {
	parsed, err := ParseAmount(string(bytes.TrimSpace(b)))
	if err != nil {
		return err
	}
	*a = parsed

	return nil
}

func (a Amount) String() string {
	return a.MilliSatoshi().String()
}
