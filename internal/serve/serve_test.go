package serve

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ninjapay/payments-reconciler/db"
	"github.com/ninjapay/payments-reconciler/internal/data"
	"github.com/ninjapay/payments-reconciler/internal/monitor"
)

type mockHTTPServer struct {
	mock.Mock
}

func (m *mockHTTPServer) Run(conf HTTPServerConfig) {
	m.Called(conf)
}

var _ HTTPServerInterface = (*mockHTTPServer)(nil)

func newTestServeOptions(t *testing.T) (ServeOptions, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, sqlMock, err := sqlmock.New(
		sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp),
		sqlmock.MonitorPingsOption(true),
	)
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(mockDB, "postgres")
	t.Cleanup(func() {
		require.NoError(t, sqlMock.ExpectationsWereMet())
		_ = sqlxDB.Close()
	})

	models, err := data.NewModels(&db.DBConnectionPoolImplementation{DB: sqlxDB})
	require.NoError(t, err)

	mMonitorService := &monitor.MockMonitorService{}
	mMonitorService.
		On("MonitorHttpRequestDuration", mock.AnythingOfType("time.Duration"), mock.AnythingOfType("monitor.HttpRequestLabels")).
		Return(nil)

	return ServeOptions{
		AppName:          "payments-reconciler",
		Version:          "1.2.0",
		GitCommit:        "abc1234",
		Port:             8000,
		HealthAuthBearer: "health-secret",
		MonitorService:   mMonitorService,
		Models:           models,
	}, sqlMock
}

func Test_handleHTTP_Health(t *testing.T) {
	opts, _ := newTestServeOptions(t)
	mux := handleHTTP(opts)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rr.Body.String())
}

func Test_handleHTTP_HealthMetrics(t *testing.T) {
	t.Run("🔴 rejects requests without the health bearer token", func(t *testing.T) {
		opts, _ := newTestServeOptions(t)
		mux := handleHTTP(opts)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/health/metrics", nil)
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.JSONEq(t, `{"error": "Not authorized."}`, rr.Body.String())
	})

	t.Run("🟢 serves the health metrics with the right token", func(t *testing.T) {
		opts, sqlMock := newTestServeOptions(t)
		mux := handleHTTP(opts)

		sqlMock.ExpectPing()
		sqlMock.ExpectQuery(`COUNT\(\*\) AS total_payments`).
			WillReturnRows(sqlmock.
				NewRows([]string{"total_payments", "authorized_payments", "total_amount_minor", "last_payment_at"}).
				AddRow(2, 1, 150000, nil))
		sqlMock.ExpectQuery(`SELECT DISTINCT context ->> 'currency'`).
			WillReturnRows(sqlmock.NewRows([]string{"currency"}))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/health/metrics", nil)
		req.Header.Set("Authorization", "Bearer health-secret")
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"app_name":"payments-reconciler"`)
		assert.Contains(t, rr.Body.String(), `"total_payments":2`)
	})
}

func Test_handleHTTP_NotFound(t *testing.T) {
	opts, _ := newTestServeOptions(t)
	mux := handleHTTP(opts)

	req := httptest.NewRequest(http.MethodGet, "/nowhere", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}
