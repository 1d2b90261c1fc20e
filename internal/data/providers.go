package data

import (
	"fmt"
	"strings"
)

// Provider identifies the PSP that owns a payment.
type Provider string

const (
	WebpayProvider Provider = "webpay"
	StripeProvider Provider = "stripe"
	PayPalProvider Provider = "paypal"
)

func (p Provider) Validate() error {
	switch Provider(strings.ToLower(string(p))) {
	case WebpayProvider, StripeProvider, PayPalProvider:
		return nil
	default:
		return fmt.Errorf("invalid provider: %s", p)
	}
}

func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	if err := p.Validate(); err != nil {
		return "", err
	}
	return p, nil
}

func Providers() []Provider {
	return []Provider{WebpayProvider, StripeProvider, PayPalProvider}
}
