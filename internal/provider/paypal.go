package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/ninjapay/payments-reconciler/internal/data"
	"github.com/ninjapay/payments-reconciler/internal/serve/httpclient"
)

const (
	DefaultPayPalBaseURL = "https://api-m.sandbox.paypal.com"

	// paypalTokenCacheTTL is deliberately shorter than PayPal's access-token lifetime so
	// a cached bearer is never used close to expiry.
	paypalTokenCacheTTL  = 5 * time.Minute
	paypalTokenCacheSize = 8
)

var errPayPalCredentialsNotConfigured = errors.New("PayPal credentials are not configured")

type PayPalOptions struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	HTTPClient   httpclient.HttpClientInterface
}

type paypalAdapter struct {
	clientID     string
	clientSecret string
	baseURL      string
	httpClient   httpclient.HttpClientInterface
	tokenCache   *expirable.LRU[string, string]
}

func NewPayPalAdapter(opts PayPalOptions) Adapter {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultPayPalBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = httpclient.DefaultClient()
	}
	return &paypalAdapter{
		clientID:     opts.ClientID,
		clientSecret: opts.ClientSecret,
		baseURL:      opts.BaseURL,
		httpClient:   opts.HTTPClient,
		tokenCache:   expirable.NewLRU[string, string](paypalTokenCacheSize, nil, paypalTokenCacheTTL),
	}
}

func (a *paypalAdapter) Name() data.Provider {
	return data.PayPalProvider
}

func (a *paypalAdapter) Status(ctx context.Context, token string) (StatusResult, CallLog) {
	orderURL := fmt.Sprintf("%s/v2/checkout/orders/%s", a.baseURL, token)

	headers := map[string]string{
		"Content-Type": "application/json",
	}

	result := StatusResult{}
	log := CallLog{
		RequestURL:     orderURL,
		RequestHeaders: MaskHeaders(headers),
	}

	start := time.Now()

	accessToken, err := a.fetchAccessToken(ctx)
	if err != nil {
		var errMsg string
		if errors.Is(err, errPayPalCredentialsNotConfigured) {
			errMsg = err.Error()
		} else {
			errMsg = fmt.Sprintf("token_error: %v", err)
		}
		log.ErrorMessage = &errMsg
		log.LatencyMS = time.Since(start).Milliseconds()
		return result, log
	}
	headers["Authorization"] = "Bearer " + accessToken
	log.RequestHeaders = MaskHeaders(headers)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, orderURL, nil)
	if err != nil {
		errMsg := err.Error()
		log.ErrorMessage = &errMsg
		log.LatencyMS = time.Since(start).Milliseconds()
		return result, log
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

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
	result.ProviderStatus = bodyStatusString(respBody, "status")
	result.MappedStatus = mapPayPalStatus(result.ProviderStatus)

	return result, log
}

// fetchAccessToken runs the client-credentials flow, serving repeated calls within the
// TTL from the cache so one polling cycle does not re-authenticate per payment.
func (a *paypalAdapter) fetchAccessToken(ctx context.Context) (string, error) {
	if a.clientID == "" || a.clientSecret == "" {
		return "", errPayPalCredentialsNotConfigured
	}

	if cached, ok := a.tokenCache.Get(a.clientID); ok {
		return cached, nil
	}

	tokenURL := fmt.Sprintf("%s/v1/oauth2/token", a.baseURL)
	form := url.Values{"grant_type": []string{"client_credentials"}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(a.clientID, a.clientSecret)

	respStatus, _, respBody, err := executeRequest(a.httpClient, req)
	if err != nil {
		return "", fmt.Errorf("requesting access token: %w", err)
	}
	if respStatus < 200 || respStatus >= 300 {
		return "", fmt.Errorf("access token request returned status %d", respStatus)
	}

	accessToken, ok := respBody["access_token"].(string)
	if !ok || accessToken == "" {
		return "", fmt.Errorf("access token missing from response")
	}

	a.tokenCache.Add(a.clientID, accessToken)
	return accessToken, nil
}

func mapPayPalStatus(providerStatus *string) *data.PaymentStatus {
	if providerStatus == nil {
		return nil
	}

	var mapped data.PaymentStatus
	switch strings.ToUpper(*providerStatus) {
	case "COMPLETED":
		mapped = data.AuthorizedPaymentStatus
	case "APPROVED", "PAYER_ACTION_REQUIRED":
		mapped = data.ToConfirmPaymentStatus
	case "CREATED":
		mapped = data.PendingPaymentStatus
	case "VOIDED":
		mapped = data.CanceledPaymentStatus
	default:
		return nil
	}
	return &mapped
}
