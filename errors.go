package lnurlpay

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies the errors the service can return.
type ErrorKind uint8

const (
	// KindConfiguration is a bad option at startup.
	KindConfiguration ErrorKind = iota

	// KindMalformedRequest is an unparsable or out of range request.
	KindMalformedRequest

	// KindVerificationFailure is a zap request that failed verification.
	KindVerificationFailure

	// KindUpstreamFailure is a failed or unexpected node call.
	KindUpstreamFailure

	// KindSerializationFailure is a failure to encode a response.
	KindSerializationFailure

	// KindInternal is any other server side failure.
	KindInternal
)

// String returns a short name usable as a metric label.
func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindMalformedRequest:
		return "malformed_request"
	case KindVerificationFailure:
		return "verification_failure"
	case KindUpstreamFailure:
		return "upstream_failure"
	case KindSerializationFailure:
		return "serialization_failure"
	case KindInternal:
		return "internal"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

var (
	// ErrMissingAmount is returned if the callback has no amount.
	ErrMissingAmount = errors.New("missing amount")

	// ErrAmountOutOfRange is returned for amounts outside of the
	// advertised sendable range.
	ErrAmountOutOfRange = errors.New("amount out of range")

	// ErrInvoiceMismatch is returned when an invoice returned by the node
	// does not commit to the requested amount and description.
	ErrInvoiceMismatch = errors.New("invoice does not match request")
)

// Error is returned by the handlers. Reason is safe to show to callers, Err
// is the underlying cause.
type Error struct {
	Kind   ErrorKind
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v: %s", e.Kind, e.Reason)
	}

	return fmt.Sprintf("%v: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

// statusCodes maps error kinds onto HTTP status codes. Client mistakes get a
// 4xx so that wallets don't retry them, node trouble a 5xx.
var statusCodes = map[ErrorKind]int{
	KindMalformedRequest:     http.StatusBadRequest,
	KindVerificationFailure:  http.StatusBadRequest,
	KindUpstreamFailure:      http.StatusBadGateway,
	KindSerializationFailure: http.StatusInternalServerError,
	KindConfiguration:        http.StatusInternalServerError,
	KindInternal:             http.StatusInternalServerError,
}

// errorKind returns the kind of err, KindInternal if it carries none.
func errorKind(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return KindInternal
}

// HTTPStatus returns the status code for err.
func HTTPStatus(err error) int {
	if code, ok := statusCodes[errorKind(err)]; ok {
		return code
	}

	return http.StatusInternalServerError
}

// errorReason returns the caller visible reason for err.
func errorReason(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Reason != "" {
		return e.Reason
	}

	return "internal error"
}
