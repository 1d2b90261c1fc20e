package crm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Client_Send(t *testing.T) {
	ctx := context.Background()
	payload := map[string]any{"monto": "15990", "paymentMethod": "webpay"}

	t.Run("posts the payload and extracts the CRM id", func(t *testing.T) {
		var gotAuth, gotContentType string
		var gotBody map[string]any
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/pagar", r.URL.Path)
			gotAuth = r.Header.Get("Authorization")
			gotContentType = r.Header.Get("Content-Type")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id": "crm-42", "ok": true}`))
		}))
		defer server.Close()

		client := NewClient(ClientOptions{
			BaseURL:        server.URL + "/",
			PagarPath:      "/pagar",
			BearerToken:    "t0ken",
			TimeoutSeconds: 5,
		})

		response, callLog := client.Send(ctx, payload)

		assert.Equal(t, "Bearer t0ken", gotAuth)
		assert.Equal(t, "application/json", gotContentType)
		assert.Equal(t, "15990", gotBody["monto"])

		assert.Equal(t, http.StatusOK, response.StatusCode)
		require.NotNil(t, response.CrmID)
		assert.Equal(t, "crm-42", *response.CrmID)
		assert.Equal(t, true, response.Body["ok"])

		assert.Equal(t, "***", callLog.RequestHeaders["Authorization"])
		assert.Equal(t, payload, callLog.RequestBody)
		assert.Nil(t, callLog.ErrorMessage)
	})

	t.Run("wraps a non-JSON response body as raw", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte("nope"))
		}))
		defer server.Close()

		client := NewClient(ClientOptions{BaseURL: server.URL, PagarPath: "/pagar", TimeoutSeconds: 5})

		response, _ := client.Send(ctx, payload)

		assert.Equal(t, http.StatusBadRequest, response.StatusCode)
		assert.Equal(t, "nope", response.Body["raw"])
		assert.Nil(t, response.CrmID)
	})

	t.Run("transport error yields status 0 and an error body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close()

		client := NewClient(ClientOptions{BaseURL: server.URL, PagarPath: "/pagar", TimeoutSeconds: 5})

		response, callLog := client.Send(ctx, payload)

		assert.Equal(t, 0, response.StatusCode)
		require.NotNil(t, callLog.ErrorMessage)
		assert.Contains(t, response.Body, "error")
		assert.Nil(t, callLog.ResponseStatus)
	})
}

func Test_extractCrmID(t *testing.T) {
	assert.Nil(t, extractCrmID(map[string]any{}))
	assert.Nil(t, extractCrmID(map[string]any{"id": nil}))

	id := extractCrmID(map[string]any{"id": "crm-1"})
	require.NotNil(t, id)
	assert.Equal(t, "crm-1", *id)

	id = extractCrmID(map[string]any{"id": float64(123456789)})
	require.NotNil(t, id)
	assert.Equal(t, "123456789", *id)
}
