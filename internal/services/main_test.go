package services

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/ninjapay/payments-reconciler/db"
	"github.com/ninjapay/payments-reconciler/internal/data"
)

// newTestModels returns Models backed by go-sqlmock, closed on test cleanup.
func newTestModels(t *testing.T) (*data.Models, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(mockDB, "postgres")
	pool := &db.DBConnectionPoolImplementation{DB: sqlxDB}
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		_ = sqlxDB.Close()
	})

	models, err := data.NewModels(pool)
	require.NoError(t, err)

	return models, mock
}
