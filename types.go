package lnurlpay

// PaymentDescriptor is the response to the first LNURL-pay request.
type PaymentDescriptor struct {
	// MinSendable is the min amount LN SERVICE is willing to receive, can
	// not be less than 1 or more than `maxSendable`.
	MinSendable Amount `json:"minSendable"`

	// MaxSendable is the max amount LN SERVICE is willing to receive.
	MaxSendable Amount `json:"maxSendable"`

	// Metadata json which must be presented as raw string here, this is
	// required to pass signature verification at a later step.
	Metadata string `json:"metadata"`

	// Callback is the URL from LN SERVICE which will accept the pay
	// request parameters.
	Callback string `json:"callback"`

	// Type of LNURL.
	Tag Type `json:"tag"`

	// AllowsNostr is set if the service accepts NIP-57 zap requests.
	AllowsNostr bool `json:"allowsNostr"`

	// NostrPubkey is the key the service signs zap receipts with. Only
	// present if AllowsNostr is set.
	NostrPubkey string `json:"nostrPubkey,omitempty"`
}

// InvoiceResult is the response to the callback request.
type InvoiceResult struct {
	// PR is a bech32-serialized lightning invoice.
	PR string `json:"pr"`

	// SuccessAction is never set by this service.
	SuccessAction *SuccessAction `json:"successAction,omitempty"`

	// Routes an empty array.
	Routes []string `json:"routes"`
}

// SuccessAction is the LUD-09 action a wallet performs after paying.
type SuccessAction struct {
	Tag     string `json:"tag"`
	Message string `json:"message,omitempty"`
}

// Type is an LNURL tag.
type Type string

const (
	TypePayRequest Type = "payRequest"
)

// StatusError is the status value of an LNURL error response.
const StatusError = "ERROR"

// ErrorResponse is the LUD-06 error body.
type ErrorResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}
