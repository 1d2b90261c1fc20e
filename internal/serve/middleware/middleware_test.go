package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ninjapay/payments-reconciler/internal/monitor"
)

func Test_RecoverHandler(t *testing.T) {
	t.Run("recovers from panics and renders a 500", func(t *testing.T) {
		r := chi.NewRouter()
		r.Use(RecoverHandler)
		r.Get("/panicky", func(w http.ResponseWriter, r *http.Request) {
			panic(fmt.Errorf("test panic"))
		})

		req := httptest.NewRequest(http.MethodGet, "/panicky", nil)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.JSONEq(t, `{"error": "An internal error occurred while processing this request."}`, rr.Body.String())
	})

	t.Run("does not recover from http.ErrAbortHandler", func(t *testing.T) {
		r := chi.NewRouter()
		r.Use(RecoverHandler)
		r.Get("/aborting", func(w http.ResponseWriter, r *http.Request) {
			panic(http.ErrAbortHandler)
		})

		req := httptest.NewRequest(http.MethodGet, "/aborting", nil)
		rr := httptest.NewRecorder()
		require.PanicsWithValue(t, http.ErrAbortHandler, func() {
			r.ServeHTTP(rr, req)
		})
	})
}

func Test_MetricsRequestHandler(t *testing.T) {
	mMonitorService := &monitor.MockMonitorService{}
	mMonitorService.
		On("MonitorHttpRequestDuration", mock.AnythingOfType("time.Duration"), monitor.HttpRequestLabels{
			Status: "200",
			Route:  "/ok",
			Method: "GET",
		}).
		Return(nil).
		Once()

	r := chi.NewRouter()
	r.Use(MetricsRequestHandler(mMonitorService))
	r.Get("/ok", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	mMonitorService.AssertExpectations(t)
}

func Test_BearerTokenMiddleware(t *testing.T) {
	newRouter := func(expectedToken string) *chi.Mux {
		r := chi.NewRouter()
		r.Use(BearerTokenMiddleware(expectedToken))
		r.Get("/protected", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		return r
	}

	testCases := []struct {
		name           string
		expectedToken  string
		authHeader     string
		wantStatusCode int
	}{
		{
			name:           "🔴 rejects when no token is configured",
			expectedToken:  "",
			authHeader:     "Bearer secret",
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "🔴 rejects when the Authorization header is missing",
			expectedToken:  "secret",
			authHeader:     "",
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "🔴 rejects a malformed Authorization header",
			expectedToken:  "secret",
			authHeader:     "secret",
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "🔴 rejects a wrong token",
			expectedToken:  "secret",
			authHeader:     "Bearer wrong",
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "🟢 accepts the expected token",
			expectedToken:  "secret",
			authHeader:     "Bearer secret",
			wantStatusCode: http.StatusOK,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tc.authHeader != "" {
				req.Header.Set("Authorization", tc.authHeader)
			}
			rr := httptest.NewRecorder()
			newRouter(tc.expectedToken).ServeHTTP(rr, req)

			assert.Equal(t, tc.wantStatusCode, rr.Code)
		})
	}
}

func Test_CorsMiddleware(t *testing.T) {
	t.Run("allows a configured origin", func(t *testing.T) {
		r := chi.NewRouter()
		r.Use(CorsMiddleware([]string{"https://admin.example.com"}))
		r.Get("/ok", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/ok", nil)
		req.Header.Set("Origin", "https://admin.example.com")
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "https://admin.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("omits the CORS header for an unknown origin", func(t *testing.T) {
		r := chi.NewRouter()
		r.Use(CorsMiddleware([]string{"https://admin.example.com"}))
		r.Get("/ok", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/ok", nil)
		req.Header.Set("Origin", "https://attacker.example.com")
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
	})
}

func Test_LoggingMiddleware(t *testing.T) {
	r := chi.NewRouter()
	r.Use(LoggingMiddleware)
	r.Get("/ok", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}
