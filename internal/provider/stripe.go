package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ninjapay/payments-reconciler/internal/data"
	"github.com/ninjapay/payments-reconciler/internal/serve/httpclient"
)

const DefaultStripeAPIBase = "https://api.stripe.com"

type StripeOptions struct {
	APIKey     string
	APIBase    string
	HTTPClient httpclient.HttpClientInterface
}

type stripeAdapter struct {
	apiKey     string
	apiBase    string
	httpClient httpclient.HttpClientInterface
}

func NewStripeAdapter(opts StripeOptions) Adapter {
	if opts.APIBase == "" {
		opts.APIBase = DefaultStripeAPIBase
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = httpclient.DefaultClient()
	}
	return &stripeAdapter{
		apiKey:     opts.APIKey,
		apiBase:    opts.APIBase,
		httpClient: opts.HTTPClient,
	}
}

func (a *stripeAdapter) Name() data.Provider {
	return data.StripeProvider
}

// stripeResourceURL routes a token to the Stripe resource that can answer for it:
// checkout-session ids (cs_...) hit the sessions endpoint with the payment intent
// expanded, client secrets (pi_..._secret_...) are reduced to the intent id, and
// everything else is treated as a payment intent id.
func (a *stripeAdapter) stripeResourceURL(token string) (url string, isSession bool) {
	if strings.HasPrefix(token, "cs_") {
		return fmt.Sprintf("%s/v1/checkout/sessions/%s?expand[]=payment_intent", a.apiBase, token), true
	}
	if strings.HasPrefix(token, "pi_") {
		if idx := strings.Index(token, "_secret_"); idx > 0 {
			token = token[:idx]
		}
	}
	return fmt.Sprintf("%s/v1/payment_intents/%s", a.apiBase, token), false
}

func (a *stripeAdapter) Status(ctx context.Context, token string) (StatusResult, CallLog) {
	url, isSession := a.stripeResourceURL(token)

	headers := map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
	}

	result := StatusResult{}
	log := CallLog{
		RequestURL:     url,
		RequestHeaders: MaskHeaders(headers),
	}

	if a.apiKey == "" {
		errMsg := "Stripe API key is not configured"
		log.ErrorMessage = &errMsg
		return result, log
	}
	log.RequestHeaders["Authorization"] = "***"

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		errMsg := err.Error()
		log.ErrorMessage = &errMsg
		log.LatencyMS = time.Since(start).Milliseconds()
		return result, log
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	req.SetBasicAuth(a.apiKey, "")

	respStatus, respHeaders, respBody, err := executeRequest(a.httpClient, req)
	log.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		errMsg := err.Error()
		log.ErrorMessage = &errMsg
		return result, log
	}

	log.ResponseStatus = &respStatus
	log.ResponseHeaders = respHeaders
	log.ResponseBody = respBody

	result.ResponseCode = &respStatus
	result.Payload = respBody

	if isSession {
		result.ProviderStatus, result.MappedStatus = mapStripeSession(respBody)
	} else {
		result.ProviderStatus = bodyStatusString(respBody, "status")
		result.MappedStatus = mapStripePaymentIntentStatus(result.ProviderStatus)
	}

	return result, log
}

// mapStripeSession prefers the expanded payment intent status; when the session has
// none yet it falls back to the session-level payment_status.
func mapStripeSession(body map[string]any) (*string, *data.PaymentStatus) {
	if body == nil {
		return nil, nil
	}

	if intent, ok := body["payment_intent"].(map[string]any); ok {
		if providerStatus := bodyStatusString(intent, "status"); providerStatus != nil {
			return providerStatus, mapStripePaymentIntentStatus(providerStatus)
		}
	}

	providerStatus := bodyStatusString(body, "payment_status")
	if providerStatus == nil {
		return nil, nil
	}

	var mapped data.PaymentStatus
	switch strings.ToLower(*providerStatus) {
	case "paid", "no_payment_required":
		mapped = data.AuthorizedPaymentStatus
	case "unpaid":
		mapped = data.ToConfirmPaymentStatus
	default:
		return providerStatus, nil
	}
	return providerStatus, &mapped
}

func mapStripePaymentIntentStatus(providerStatus *string) *data.PaymentStatus {
	if providerStatus == nil {
		return nil
	}

	var mapped data.PaymentStatus
	switch strings.ToLower(*providerStatus) {
	case "succeeded", "requires_capture":
		mapped = data.AuthorizedPaymentStatus
	case "processing", "requires_action":
		mapped = data.ToConfirmPaymentStatus
	case "requires_payment_method":
		mapped = data.FailedPaymentStatus
	case "canceled":
		mapped = data.CanceledPaymentStatus
	default:
		return nil
	}
	return &mapped
}
