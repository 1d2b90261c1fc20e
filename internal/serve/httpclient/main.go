package httpclient

import (
	"net/http"
	"net/url"
	"time"
)

type HttpClientInterface interface {
	Do(*http.Request) (*http.Response, error)
	Get(url string) (resp *http.Response, err error)
	PostForm(url string, data url.Values) (resp *http.Response, err error)
}

const TimeoutClientInSeconds = 10

// DefaultClient returns a default HTTP client with the outbound-call timeout.
func DefaultClient() HttpClientInterface {
	return &http.Client{Timeout: TimeoutClientInSeconds * time.Second}
}

// ClientWithTimeout returns an HTTP client with a custom timeout.
func ClientWithTimeout(timeout time.Duration) HttpClientInterface {
	return &http.Client{Timeout: timeout}
}

var _ HttpClientInterface = DefaultClient()
