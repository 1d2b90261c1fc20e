package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ninjapay/payments-reconciler/internal/data"
	"github.com/ninjapay/payments-reconciler/internal/serve/httpclient"
)

// StatusResult is the reconciliation outcome of one provider probe. MappedStatus is nil
// when the provider status has no equivalent in the payment state machine.
type StatusResult struct {
	ProviderStatus *string
	MappedStatus   *data.PaymentStatus
	ResponseCode   *int
	Payload        map[string]any
}

// CallLog is the audit trail of the probe, persisted verbatim into the provider event
// log. Request and response headers are already masked.
type CallLog struct {
	RequestURL      string
	RequestHeaders  map[string]any
	RequestBody     map[string]any
	ResponseStatus  *int
	ResponseHeaders map[string]any
	ResponseBody    map[string]any
	ErrorMessage    *string
	LatencyMS       int64
}

// Adapter knows how to ask one PSP for the current status of a payment token. Status
// never returns an error: failures are carried inside the CallLog so the caller can
// persist them as a failed status check.
type Adapter interface {
	Name() data.Provider
	Status(ctx context.Context, token string) (StatusResult, CallLog)
}

// Options carries the credentials and endpoints for every supported adapter.
type Options struct {
	Webpay WebpayOptions
	Stripe StripeOptions
	PayPal PayPalOptions
}

// NewAdapters builds the adapter registry for the given allow-list.
func NewAdapters(providers []data.Provider, opts Options) (map[data.Provider]Adapter, error) {
	adapters := map[data.Provider]Adapter{}
	for _, p := range providers {
		switch p {
		case data.WebpayProvider:
			adapters[p] = NewWebpayAdapter(opts.Webpay)
		case data.StripeProvider:
			adapters[p] = NewStripeAdapter(opts.Stripe)
		case data.PayPalProvider:
			adapters[p] = NewPayPalAdapter(opts.PayPal)
		default:
			return nil, fmt.Errorf("unsupported provider %q", p)
		}
	}
	return adapters, nil
}

var maskedHeaderNames = map[string]bool{
	"authorization":      true,
	"tbk-api-key-secret": true,
	"x-api-key":          true,
}

// MaskHeaders replaces the values of credential-bearing headers with "***". Everything
// else is copied through, bodies are never touched.
func MaskHeaders(headers map[string]string) map[string]any {
	masked := map[string]any{}
	for key, value := range headers {
		if maskedHeaderNames[strings.ToLower(key)] {
			masked[key] = "***"
		} else {
			masked[key] = value
		}
	}
	return masked
}

func maskHTTPHeaders(headers http.Header) map[string]any {
	flat := map[string]string{}
	for key, values := range headers {
		flat[key] = strings.Join(values, ", ")
	}
	return MaskHeaders(flat)
}

// parseResponseBody decodes a JSON object body, wrapping anything else as {"raw": text}.
func parseResponseBody(raw []byte) map[string]any {
	body := map[string]any{}
	if err := json.Unmarshal(raw, &body); err != nil {
		return map[string]any{"raw": string(raw)}
	}
	return body
}

// executeRequest runs the request and returns the response status, masked headers and
// parsed body.
func executeRequest(client httpclient.HttpClientInterface, req *http.Request) (int, map[string]any, map[string]any, error) {
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, maskHTTPHeaders(resp.Header), nil, fmt.Errorf("reading response body: %w", err)
	}

	return resp.StatusCode, maskHTTPHeaders(resp.Header), parseResponseBody(raw), nil
}

// bodyStatusString extracts a non-empty "status" field from the response body.
func bodyStatusString(body map[string]any, key string) *string {
	if body == nil {
		return nil
	}
	v, ok := body[key]
	if !ok || v == nil {
		return nil
	}
	s := fmt.Sprintf("%v", v)
	if s == "" {
		return nil
	}
	return &s
}
