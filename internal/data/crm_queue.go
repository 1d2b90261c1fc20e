package data

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ninjapay/payments-reconciler/db"
)

// CrmOperation is the semantic event delivered to the CRM.
type CrmOperation string

const (
	PaymentApprovedOperation CrmOperation = "PAYMENT_APPROVED"
	AbandonedCartOperation   CrmOperation = "ABANDONED_CART"
)

func (o CrmOperation) Validate() error {
	switch CrmOperation(strings.ToUpper(string(o))) {
	case PaymentApprovedOperation, AbandonedCartOperation:
		return nil
	default:
		return fmt.Errorf("invalid CRM operation: %s", o)
	}
}

// CrmQueueStatus is the delivery state of a queue item. SENT is terminal.
type CrmQueueStatus string

const (
	PendingCrmQueueStatus CrmQueueStatus = "PENDING"
	SentCrmQueueStatus    CrmQueueStatus = "SENT"
	FailedCrmQueueStatus  CrmQueueStatus = "FAILED"
)

type CrmQueueItem struct {
	ID            int64          `db:"id"`
	PaymentID     int64          `db:"payment_id"`
	Operation     CrmOperation   `db:"operation"`
	Status        CrmQueueStatus `db:"status"`
	Attempts      int            `db:"attempts"`
	NextAttemptAt *time.Time     `db:"next_attempt_at"`
	LastAttemptAt *time.Time     `db:"last_attempt_at"`
	ResponseCode  *int           `db:"response_code"`
	CrmID         *string        `db:"crm_id"`
	LastError     *string        `db:"last_error"`
	Payload       JSONMap        `db:"payload"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

type CrmQueueModel struct {
	dbConnectionPool db.DBConnectionPool
}

// Enqueue inserts a queue row for (paymentID, operation) or, when one already exists,
// resets it to a fresh PENDING row with the new payload. The upsert makes enqueueing
// idempotent and doubles as the reset-for-retry primitive.
func (m *CrmQueueModel) Enqueue(ctx context.Context, sqlExec db.SQLExecuter, paymentID int64, operation CrmOperation, payload map[string]any) error {
	if err := operation.Validate(); err != nil {
		return fmt.Errorf("validating CRM operation: %w", err)
	}

	query := `
	INSERT INTO payments.crm_push_queue (
		payment_id,
		operation,
		status,
		attempts,
		payload
	) VALUES ($1, $2, 'PENDING', 0, $3)
	ON CONFLICT (payment_id, operation)
	DO UPDATE SET
		status = 'PENDING',
		attempts = 0,
		next_attempt_at = NULL,
		last_attempt_at = NULL,
		response_code = NULL,
		crm_id = NULL,
		last_error = NULL,
		payload = EXCLUDED.payload,
		updated_at = NOW()
	`

	_, err := sqlExec.ExecContext(ctx, query, paymentID, operation, JSONMap(payload))
	if err != nil {
		return fmt.Errorf("enqueueing CRM operation %s for payment %d: %w", operation, paymentID, err)
	}

	return nil
}

// GetPendingDue returns up to limit PENDING items that are due (next_attempt_at NULL or
// past), oldest first, row-locked with skip-locked so concurrent senders never collide.
func (m *CrmQueueModel) GetPendingDue(ctx context.Context, sqlExec db.SQLExecuter, limit int) ([]CrmQueueItem, error) {
	query := `
	SELECT
		id,
		payment_id,
		operation,
		status,
		attempts,
		next_attempt_at,
		last_attempt_at,
		response_code,
		crm_id,
		last_error,
		payload,
		created_at,
		updated_at
	FROM payments.crm_push_queue
	WHERE status = $1
	  AND (next_attempt_at IS NULL OR next_attempt_at <= NOW())
	ORDER BY created_at ASC
	FOR UPDATE SKIP LOCKED
	LIMIT $2
	`

	items := []CrmQueueItem{}
	err := sqlExec.SelectContext(ctx, &items, query, PendingCrmQueueStatus, limit)
	if err != nil {
		return nil, fmt.Errorf("fetching pending CRM queue items: %w", err)
	}

	return items, nil
}

// MarkSent finalizes a queue item after a 2xx CRM response. SENT is terminal.
func (m *CrmQueueModel) MarkSent(ctx context.Context, sqlExec db.SQLExecuter, itemID int64, responseCode int, crmID *string) error {
	query := `
	UPDATE payments.crm_push_queue
	SET status = $1,
		response_code = $2,
		crm_id = $3,
		last_error = NULL,
		updated_at = NOW()
	WHERE id = $4
	`

	result, err := sqlExec.ExecContext(ctx, query, SentCrmQueueStatus, responseCode, crmID, itemID)
	if err != nil {
		return fmt.Errorf("marking CRM queue item %d sent: %w", itemID, err)
	}

	numRowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting number of rows affected: %w", err)
	}
	if numRowsAffected == 0 {
		return ErrRecordNotFound
	}

	return nil
}

// MarkFailed parks a queue item as FAILED with its bumped attempt count and the time
// the backoff schedule allows the next try.
func (m *CrmQueueModel) MarkFailed(ctx context.Context, sqlExec db.SQLExecuter, itemID int64, attempts int, nextAttemptAt *time.Time, responseCode *int, lastError string) error {
	query := `
	UPDATE payments.crm_push_queue
	SET status = $1,
		attempts = $2,
		next_attempt_at = $3,
		last_attempt_at = NOW(),
		response_code = $4,
		last_error = $5,
		updated_at = NOW()
	WHERE id = $6
	`

	result, err := sqlExec.ExecContext(ctx, query, FailedCrmQueueStatus, attempts, nextAttemptAt, responseCode, lastError, itemID)
	if err != nil {
		return fmt.Errorf("marking CRM queue item %d failed: %w", itemID, err)
	}

	numRowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting number of rows affected: %w", err)
	}
	if numRowsAffected == 0 {
		return ErrRecordNotFound
	}

	return nil
}

// ReactivateFailed flips up to limit due FAILED items back to PENDING and returns how
// many were flipped.
func (m *CrmQueueModel) ReactivateFailed(ctx context.Context, sqlExec db.SQLExecuter, limit int) (int, error) {
	query := `
	WITH moved AS (
		SELECT id
		FROM payments.crm_push_queue
		WHERE status = $1
		  AND (next_attempt_at IS NULL OR next_attempt_at <= NOW())
		ORDER BY next_attempt_at NULLS FIRST
		FOR UPDATE SKIP LOCKED
		LIMIT $2
	)
	UPDATE payments.crm_push_queue AS q
	SET status = $3,
		updated_at = NOW()
	FROM moved
	WHERE q.id = moved.id
	`

	result, err := sqlExec.ExecContext(ctx, query, FailedCrmQueueStatus, limit, PendingCrmQueueStatus)
	if err != nil {
		return 0, fmt.Errorf("reactivating failed CRM queue items: %w", err)
	}

	numRowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting number of rows affected: %w", err)
	}

	return int(numRowsAffected), nil
}
