package data

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ninjapay/payments-reconciler/internal/utils"
)

func Test_PaymentModel_UpdateStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects transitions the state machine forbids", func(t *testing.T) {
		sqlxDB, _ := newSQLxMock(t)
		m := &PaymentModel{}

		err := m.UpdateStatus(ctx, sqlxDB, 42, AuthorizedPaymentStatus, FailedPaymentStatus, nil)
		require.ErrorContains(t, err, "cannot transition from AUTHORIZED to FAILED")
	})

	t.Run("fills the first-transition timestamp with COALESCE and sets the reason", func(t *testing.T) {
		sqlxDB, mock := newSQLxMock(t)
		m := &PaymentModel{}

		mock.ExpectExec(`UPDATE payments\.payment\s+SET status = \$1, updated_at = NOW\(\), status_reason = \$2, first_authorized_at = COALESCE\(first_authorized_at, NOW\(\)\)\s+WHERE id = \$3`).
			WithArgs(AuthorizedPaymentStatus, "provider reconciliation update", int64(42)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := m.UpdateStatus(ctx, sqlxDB, 42, PendingPaymentStatus, AuthorizedPaymentStatus, utils.StringPtr("provider reconciliation update"))
		require.NoError(t, err)
	})

	t.Run("omits the reason and timestamp when the target has neither", func(t *testing.T) {
		sqlxDB, mock := newSQLxMock(t)
		m := &PaymentModel{}

		mock.ExpectExec(`UPDATE payments\.payment\s+SET status = \$1, updated_at = NOW\(\)\s+WHERE id = \$2`).
			WithArgs(ToConfirmPaymentStatus, int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := m.UpdateStatus(ctx, sqlxDB, 7, PendingPaymentStatus, ToConfirmPaymentStatus, nil)
		require.NoError(t, err)
	})

	t.Run("returns ErrRecordNotFound when no row matches", func(t *testing.T) {
		sqlxDB, mock := newSQLxMock(t)
		m := &PaymentModel{}

		mock.ExpectExec(`UPDATE payments\.payment`).
			WithArgs(CanceledPaymentStatus, "provider reconciliation update", int64(99)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := m.UpdateStatus(ctx, sqlxDB, 99, ToConfirmPaymentStatus, CanceledPaymentStatus, utils.StringPtr("provider reconciliation update"))
		require.ErrorIs(t, err, ErrRecordNotFound)
	})
}

func Test_PaymentModel_MarkAttemptsExhausted(t *testing.T) {
	ctx := context.Background()

	t.Run("abandons the payment with the exhaustion reason", func(t *testing.T) {
		sqlxDB, mock := newSQLxMock(t)
		m := &PaymentModel{}

		mock.ExpectExec(`UPDATE payments\.payment\s+SET status = \$1, updated_at = NOW\(\), status_reason = \$2\s+WHERE id = \$3`).
			WithArgs(AbandonedPaymentStatus, "reconcile attempts exhausted", int64(13)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := m.MarkAttemptsExhausted(ctx, sqlxDB, 13, ToConfirmPaymentStatus)
		require.NoError(t, err)
	})

	t.Run("refuses to abandon an authorized payment", func(t *testing.T) {
		sqlxDB, _ := newSQLxMock(t)
		m := &PaymentModel{}

		err := m.MarkAttemptsExhausted(ctx, sqlxDB, 13, AuthorizedPaymentStatus)
		require.ErrorContains(t, err, "cannot transition from AUTHORIZED to ABANDONED")
	})
}

func Test_PaymentModel_GetAllForReconciliation(t *testing.T) {
	ctx := context.Background()
	sqlxDB, mock := newSQLxMock(t)
	m := &PaymentModel{}

	rows := sqlmock.NewRows([]string{"attempts", "id", "status", "provider", "token", "amount_minor", "currency"}).
		AddRow(2, int64(10), string(PendingPaymentStatus), string(WebpayProvider), "tok-1", int64(15990), "CLP").
		AddRow(0, int64(11), string(ToConfirmPaymentStatus), string(StripeProvider), "pi_123", int64(4990), "CLP")

	mock.ExpectQuery(`SELECT\s+COALESCE\(pa\.attempts, 0\) AS attempts,[\s\S]+FOR UPDATE OF p SKIP LOCKED`).
		WithArgs(PendingPaymentStatus, ToConfirmPaymentStatus, sqlmock.AnyArg(), 100).
		WillReturnRows(rows)

	payments, err := m.GetAllForReconciliation(ctx, sqlxDB, []Provider{WebpayProvider, StripeProvider}, 100)
	require.NoError(t, err)
	require.Len(t, payments, 2)

	assert.Equal(t, int64(10), payments[0].ID)
	assert.Equal(t, 2, payments[0].Attempts)
	assert.Equal(t, WebpayProvider, payments[0].Provider)
	assert.Equal(t, ToConfirmPaymentStatus, payments[1].Status)
	assert.Equal(t, 0, payments[1].Attempts)
}

func Test_PaymentModel_GetAuthorizedMissingCrm(t *testing.T) {
	ctx := context.Background()
	sqlxDB, mock := newSQLxMock(t)
	m := &PaymentModel{}

	rows := sqlmock.NewRows([]string{"attempts", "id", "status", "provider", "amount_minor", "currency"}).
		AddRow(0, int64(21), string(AuthorizedPaymentStatus), string(PayPalProvider), int64(9900), "CLP")

	mock.ExpectQuery(`NOT EXISTS\s*\(\s*SELECT 1\s+FROM payments\.crm_push_queue`).
		WithArgs(AuthorizedPaymentStatus, PaymentApprovedOperation, 50).
		WillReturnRows(rows)

	payments, err := m.GetAuthorizedMissingCrm(ctx, sqlxDB, 50)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, int64(21), payments[0].ID)
}
