package data

import (
	"context"
	"fmt"

	"github.com/ninjapay/payments-reconciler/db"
)

// StatusCheckInsert is one reconciliation probe against a PSP. A row is appended for
// every provider call, successful or not; the rows double as the attempt counter.
type StatusCheckInsert struct {
	PaymentID      int64
	Provider       Provider
	Success        bool
	ProviderStatus *string
	MappedStatus   *PaymentStatus
	ResponseCode   *int
	RawPayload     map[string]any
	ErrorMessage   *string
}

type StatusCheckModel struct {
	dbConnectionPool db.DBConnectionPool
}

func (m *StatusCheckModel) Insert(ctx context.Context, sqlExec db.SQLExecuter, insert StatusCheckInsert) error {
	query := `
	INSERT INTO payments.status_check (
		payment_id,
		provider,
		success,
		provider_status,
		mapped_status,
		response_code,
		raw_payload,
		error_message,
		requested_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	`

	var mappedStatus *string
	if insert.MappedStatus != nil {
		s := string(*insert.MappedStatus)
		mappedStatus = &s
	}

	_, err := sqlExec.ExecContext(ctx, query,
		insert.PaymentID,
		insert.Provider,
		insert.Success,
		insert.ProviderStatus,
		mappedStatus,
		insert.ResponseCode,
		JSONMap(insert.RawPayload),
		insert.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("inserting status check for payment %d: %w", insert.PaymentID, err)
	}

	return nil
}

// CountForPayment returns the number of status checks recorded for a payment.
func (m *StatusCheckModel) CountForPayment(ctx context.Context, sqlExec db.SQLExecuter, paymentID int64) (int, error) {
	query := `
	SELECT COUNT(*)
	FROM payments.status_check
	WHERE payment_id = $1
	`

	var count int
	err := sqlExec.GetContext(ctx, &count, query, paymentID)
	if err != nil {
		return 0, fmt.Errorf("counting status checks for payment %d: %w", paymentID, err)
	}

	return count, nil
}
