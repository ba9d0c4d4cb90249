package lnurlpay

// BuildDescriptor returns the payment descriptor for cfg. It depends on
// nothing but the configuration and always returns the same value for it.
func BuildDescriptor(cfg *ServiceConfig) *PaymentDescriptor {
	pubKey, allowsNostr := cfg.NostrPubKey()

	return &PaymentDescriptor{
		MinSendable: AmountFromMsat(MinSendable),
		MaxSendable: AmountFromMsat(MaxSendable),
		Metadata:    cfg.Metadata(),
		Callback:    cfg.CallbackURL(),
		Tag:         TypePayRequest,
		AllowsNostr: allowsNostr,
		NostrPubkey: pubKey,
	}
}
