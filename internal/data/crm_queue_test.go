package data

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ninjapay/payments-reconciler/internal/utils"
)

func Test_CrmQueueModel_Enqueue(t *testing.T) {
	ctx := context.Background()

	t.Run("upserts and resets a conflicting row to a fresh PENDING state", func(t *testing.T) {
		sqlxDB, mock := newSQLxMock(t)
		m := &CrmQueueModel{}

		mock.ExpectExec(`INSERT INTO payments\.crm_push_queue[\s\S]+ON CONFLICT \(payment_id, operation\)\s+DO UPDATE SET\s+status = 'PENDING',\s+attempts = 0,\s+next_attempt_at = NULL,[\s\S]+payload = EXCLUDED\.payload`).
			WithArgs(int64(42), PaymentApprovedOperation, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		err := m.Enqueue(ctx, sqlxDB, 42, PaymentApprovedOperation, map[string]any{"monto": "15990"})
		require.NoError(t, err)
	})

	t.Run("rejects unknown operations before touching the database", func(t *testing.T) {
		sqlxDB, _ := newSQLxMock(t)
		m := &CrmQueueModel{}

		err := m.Enqueue(ctx, sqlxDB, 42, CrmOperation("PAYMENT_SETTLED"), nil)
		require.ErrorContains(t, err, "invalid CRM operation: PAYMENT_SETTLED")
	})
}

func Test_CrmQueueModel_GetPendingDue(t *testing.T) {
	ctx := context.Background()
	sqlxDB, mock := newSQLxMock(t)
	m := &CrmQueueModel{}

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "payment_id", "operation", "status", "attempts", "payload", "created_at", "updated_at"}).
		AddRow(int64(1), int64(42), string(PaymentApprovedOperation), string(PendingCrmQueueStatus), 0, []byte(`{"monto":"15990"}`), now, now)

	mock.ExpectQuery(`FROM payments\.crm_push_queue\s+WHERE status = \$1\s+AND \(next_attempt_at IS NULL OR next_attempt_at <= NOW\(\)\)\s+ORDER BY created_at ASC\s+FOR UPDATE SKIP LOCKED`).
		WithArgs(PendingCrmQueueStatus, 100).
		WillReturnRows(rows)

	items, err := m.GetPendingDue(ctx, sqlxDB, 100)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(42), items[0].PaymentID)
	assert.Equal(t, PaymentApprovedOperation, items[0].Operation)
	assert.Equal(t, "15990", items[0].Payload["monto"])
}

func Test_CrmQueueModel_MarkSent(t *testing.T) {
	ctx := context.Background()

	t.Run("marks the item SENT and clears the last error", func(t *testing.T) {
		sqlxDB, mock := newSQLxMock(t)
		m := &CrmQueueModel{}

		mock.ExpectExec(`UPDATE payments\.crm_push_queue\s+SET status = \$1,\s+response_code = \$2,\s+crm_id = \$3,\s+last_error = NULL`).
			WithArgs(SentCrmQueueStatus, 200, "crm-123", int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := m.MarkSent(ctx, sqlxDB, 1, 200, utils.StringPtr("crm-123"))
		require.NoError(t, err)
	})

	t.Run("returns ErrRecordNotFound for a missing item", func(t *testing.T) {
		sqlxDB, mock := newSQLxMock(t)
		m := &CrmQueueModel{}

		mock.ExpectExec(`UPDATE payments\.crm_push_queue`).
			WithArgs(SentCrmQueueStatus, 200, nil, int64(999)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := m.MarkSent(ctx, sqlxDB, 999, 200, nil)
		require.ErrorIs(t, err, ErrRecordNotFound)
	})
}

func Test_CrmQueueModel_MarkFailed(t *testing.T) {
	ctx := context.Background()
	sqlxDB, mock := newSQLxMock(t)
	m := &CrmQueueModel{}

	nextAttemptAt := time.Now().Add(5 * time.Minute)
	mock.ExpectExec(`UPDATE payments\.crm_push_queue\s+SET status = \$1,\s+attempts = \$2,\s+next_attempt_at = \$3,\s+last_attempt_at = NOW\(\)`).
		WithArgs(FailedCrmQueueStatus, 3, nextAttemptAt, 500, "CRM send failed", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := m.MarkFailed(ctx, sqlxDB, 1, 3, &nextAttemptAt, utils.IntPtr(500), "CRM send failed")
	require.NoError(t, err)
}

func Test_CrmQueueModel_ReactivateFailed(t *testing.T) {
	ctx := context.Background()
	sqlxDB, mock := newSQLxMock(t)
	m := &CrmQueueModel{}

	mock.ExpectExec(`WITH moved AS \(\s+SELECT id\s+FROM payments\.crm_push_queue\s+WHERE status = \$1[\s\S]+FOR UPDATE SKIP LOCKED`).
		WithArgs(FailedCrmQueueStatus, 100, PendingCrmQueueStatus).
		WillReturnResult(sqlmock.NewResult(0, 2))

	moved, err := m.ReactivateFailed(ctx, sqlxDB, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, moved)
}
