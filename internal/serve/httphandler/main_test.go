package httphandler

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/ninjapay/payments-reconciler/db"
	"github.com/ninjapay/payments-reconciler/internal/data"
)

// newTestModels returns models backed by go-sqlmock, with ping monitoring on so
// handlers that check database reachability can be exercised.
func newTestModels(t *testing.T) (*data.Models, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New(
		sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp),
		sqlmock.MonitorPingsOption(true),
	)
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(mockDB, "postgres")
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		_ = sqlxDB.Close()
	})

	models, err := data.NewModels(&db.DBConnectionPoolImplementation{DB: sqlxDB})
	require.NoError(t, err)

	return models, mock
}
