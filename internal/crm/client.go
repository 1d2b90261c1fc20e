package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ninjapay/payments-reconciler/internal/provider"
	"github.com/ninjapay/payments-reconciler/internal/serve/httpclient"
)

// Response is the CRM's answer to one delivery. A transport failure yields StatusCode 0
// and a Body of {"error": message} so the queue always has something to persist.
type Response struct {
	StatusCode int
	Body       map[string]any
	CrmID      *string
	LatencyMS  int64
}

// CallLog is the audit record of the delivery attempt, headers masked like provider
// calls.
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

type ClientInterface interface {
	Send(ctx context.Context, payload map[string]any) (Response, CallLog)
}

type ClientOptions struct {
	BaseURL        string
	PagarPath      string
	BearerToken    string
	TimeoutSeconds int
	LogRequests    bool
	HTTPClient     httpclient.HttpClientInterface
}

type Client struct {
	endpoint    string
	bearerToken string
	logRequests bool
	httpClient  httpclient.HttpClientInterface
}

func NewClient(opts ClientOptions) *Client {
	if opts.HTTPClient == nil {
		timeout := time.Duration(opts.TimeoutSeconds) * time.Second
		if timeout <= 0 {
			timeout = httpclient.TimeoutClientInSeconds * time.Second
		}
		opts.HTTPClient = httpclient.ClientWithTimeout(timeout)
	}
	return &Client{
		endpoint:    strings.TrimRight(opts.BaseURL, "/") + opts.PagarPath,
		bearerToken: opts.BearerToken,
		logRequests: opts.LogRequests,
		httpClient:  opts.HTTPClient,
	}
}

func (c *Client) Endpoint() string {
	return c.endpoint
}

func (c *Client) Send(ctx context.Context, payload map[string]any) (Response, CallLog) {
	headers := map[string]string{"Content-Type": "application/json"}
	if c.bearerToken != "" {
		headers["Authorization"] = "Bearer " + c.bearerToken
	}

	callLog := CallLog{
		RequestURL:     c.endpoint,
		RequestHeaders: provider.MaskHeaders(headers),
		RequestBody:    payload,
	}
	response := Response{}

	if c.logRequests {
		log.WithContext(ctx).Debugf("CRM request to %s", c.endpoint)
	}

	start := time.Now()

	body, err := json.Marshal(payload)
	if err != nil {
		errMsg := fmt.Sprintf("marshaling CRM payload: %v", err)
		callLog.ErrorMessage = &errMsg
		response.Body = map[string]any{"error": errMsg}
		return response, callLog
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		errMsg := err.Error()
		callLog.ErrorMessage = &errMsg
		response.Body = map[string]any{"error": errMsg}
		return response, callLog
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	response.LatencyMS = time.Since(start).Milliseconds()
	callLog.LatencyMS = response.LatencyMS
	if err != nil {
		errMsg := err.Error()
		callLog.ErrorMessage = &errMsg
		response.Body = map[string]any{"error": errMsg}
		return response, callLog
	}
	defer resp.Body.Close()

	response.StatusCode = resp.StatusCode
	callLog.ResponseStatus = &resp.StatusCode

	respHeaders := map[string]string{}
	for key, values := range resp.Header {
		respHeaders[key] = strings.Join(values, ", ")
	}
	callLog.ResponseHeaders = provider.MaskHeaders(respHeaders)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		errMsg := fmt.Sprintf("reading CRM response body: %v", err)
		callLog.ErrorMessage = &errMsg
		response.Body = map[string]any{"error": errMsg}
		return response, callLog
	}

	respBody := map[string]any{}
	if err := json.Unmarshal(raw, &respBody); err != nil {
		respBody = map[string]any{"raw": string(raw)}
	}
	response.Body = respBody
	callLog.ResponseBody = respBody
	response.CrmID = extractCrmID(respBody)

	return response, callLog
}

// extractCrmID pulls the CRM-assigned identifier out of the response body.
func extractCrmID(body map[string]any) *string {
	v, ok := body["id"]
	if !ok || v == nil {
		return nil
	}

	var id string
	switch typed := v.(type) {
	case string:
		id = typed
	case float64:
		id = strconv.FormatFloat(typed, 'f', -1, 64)
	default:
		id = fmt.Sprintf("%v", typed)
	}
	if id == "" {
		return nil
	}
	return &id
}

var _ ClientInterface = (*Client)(nil)
