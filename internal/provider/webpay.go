package provider

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ninjapay/payments-reconciler/internal/data"
	"github.com/ninjapay/payments-reconciler/internal/serve/httpclient"
)

const DefaultWebpayStatusURLTemplate = "https://webpay3gint.transbank.cl/rswebpaytransaction/api/webpay/v1.2/transactions/{token}"

type WebpayOptions struct {
	StatusURLTemplate string
	APIKeyID          string
	APIKeySecret      string
	CommerceCode      string
	HTTPClient        httpclient.HttpClientInterface
}

type webpayAdapter struct {
	statusURLTemplate string
	apiKeyID          string
	apiKeySecret      string
	commerceCode      string
	httpClient        httpclient.HttpClientInterface
}

func NewWebpayAdapter(opts WebpayOptions) Adapter {
	if opts.StatusURLTemplate == "" {
		opts.StatusURLTemplate = DefaultWebpayStatusURLTemplate
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = httpclient.DefaultClient()
	}
	return &webpayAdapter{
		statusURLTemplate: opts.StatusURLTemplate,
		apiKeyID:          opts.APIKeyID,
		apiKeySecret:      opts.APIKeySecret,
		commerceCode:      opts.CommerceCode,
		httpClient:        opts.HTTPClient,
	}
}

func (a *webpayAdapter) Name() data.Provider {
	return data.WebpayProvider
}

func (a *webpayAdapter) Status(ctx context.Context, token string) (StatusResult, CallLog) {
	url := strings.Replace(a.statusURLTemplate, "{token}", token, 1)

	headers := map[string]string{
		"Content-Type": "application/json",
	}
	if a.apiKeyID != "" {
		headers["Tbk-Api-Key-Id"] = a.apiKeyID
	}
	if a.apiKeySecret != "" {
		headers["Tbk-Api-Key-Secret"] = a.apiKeySecret
	}
	if a.commerceCode != "" {
		headers["Tbk-Commerce-Code"] = a.commerceCode
	}

	log := CallLog{
		RequestURL:     url,
		RequestHeaders: MaskHeaders(headers),
	}

	start := time.Now()
	result := StatusResult{}

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
	result.MappedStatus = mapWebpayStatus(result.ProviderStatus)

	return result, log
}

func mapWebpayStatus(providerStatus *string) *data.PaymentStatus {
	if providerStatus == nil {
		return nil
	}

	var mapped data.PaymentStatus
	switch strings.ToUpper(*providerStatus) {
	case "AUTHORIZED":
		mapped = data.AuthorizedPaymentStatus
	case "FAILED", "REJECTED":
		mapped = data.FailedPaymentStatus
	case "REVERSED", "NULLIFIED":
		mapped = data.CanceledPaymentStatus
	case "PENDING", "INITIALIZED":
		mapped = data.PendingPaymentStatus
	default:
		return nil
	}
	return &mapped
}
