package data

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/ninjapay/payments-reconciler/db"
)

// Payment is a denormalized reconciliation row: the payment itself plus the owner,
// contract, deposit and auxiliary-amount data the CRM payload needs.
type Payment struct {
	ID                int64         `db:"id"`
	Status            PaymentStatus `db:"status"`
	Provider          Provider      `db:"provider"`
	Token             *string       `db:"token"`
	CreatedAt         time.Time     `db:"created_at"`
	AmountMinor       int64         `db:"amount_minor"`
	Currency          string        `db:"currency"`
	AuthorizationCode *string       `db:"authorization_code"`
	StatusReason      *string       `db:"status_reason"`
	ProviderMetadata  JSONMap       `db:"provider_metadata"`
	Context           JSONMap       `db:"context"`
	ProductID         *int64        `db:"product_id"`
	// Attempts is the count of status_check rows for this payment, populated by the
	// reconciliation query; it is not a stored column.
	Attempts         int           `db:"attempts"`
	PaymentOrderID   *int64        `db:"payment_order_id"`
	OrderCustomerRut *string       `db:"order_customer_rut"`
	ContractNumber   *int64        `db:"contract_number"`
	QuotaNumbers     pq.Int64Array `db:"quota_numbers"`
	PaymentType      *string       `db:"payment_type"`
	ShouldNotifyCrm  *bool         `db:"should_notify_crm"`
	DepositorName    *string       `db:"depositor_name"`
	DepositorRut     *string       `db:"depositor_rut"`
	AuxAmountMinor   *int64        `db:"aux_amount_minor"`
	AuxCurrency      *string       `db:"aux_currency"`
}

type PaymentsMetrics struct {
	TotalPayments       int64      `db:"total_payments"`
	AuthorizedPayments  int64      `db:"authorized_payments"`
	TotalAmountMinor    int64      `db:"total_amount_minor"`
	TotalAmountCurrency *string    `db:"-"`
	LastPaymentAt       *time.Time `db:"last_payment_at"`
}

func (m PaymentsMetrics) ToMap() map[string]any {
	var lastPaymentAt *string
	if m.LastPaymentAt != nil {
		s := m.LastPaymentAt.Format(time.RFC3339)
		lastPaymentAt = &s
	}
	return map[string]any{
		"total_payments":        m.TotalPayments,
		"authorized_payments":   m.AuthorizedPayments,
		"total_amount_minor":    m.TotalAmountMinor,
		"total_amount_currency": m.TotalAmountCurrency,
		"last_payment_at":       lastPaymentAt,
	}
}

type PaymentModel struct {
	dbConnectionPool db.DBConnectionPool
}

const paymentJoinedColumns = `
		p.id,
		p.status::text AS status,
		p.provider::text AS provider,
		p.token,
		p.created_at,
		p.amount_minor,
		p.currency::text AS currency,
		p.authorization_code,
		p.status_reason,
		p.provider_metadata,
		p.context,
		p.product_id,
		po.id AS payment_order_id,
		po.customer_rut AS order_customer_rut,
		pc.contract_number,
		pc.quota_numbers,
		pc.payment_type,
		pc.should_notify_crm,
		pdi.depositor_name,
		pdi.depositor_rut,
		paa.aux_amount_minor,
		paa.aux_currency::text AS aux_currency`

const paymentJoins = `
	FROM payments.payment AS p
	LEFT JOIN payments.payment_order AS po ON po.id = p.payment_order_id
	LEFT JOIN payments.payment_contract AS pc ON pc.payment_id = p.id
	LEFT JOIN payments.payment_deposit_info AS pdi ON pdi.payment_id = p.id
	LEFT JOIN payments.payment_aux_amount AS paa ON paa.payment_id = p.id`

// GetAllForReconciliation returns payments in {PENDING, TO_CONFIRM} with a token whose
// provider is in the allow-list, oldest first, locking the selected rows and skipping
// rows locked by a concurrent instance. Attempts is the status_check count per payment.
func (m *PaymentModel) GetAllForReconciliation(ctx context.Context, sqlExec db.SQLExecuter, providers []Provider, batchSize int) ([]Payment, error) {
	query := `
	WITH payment_attempts AS (
		SELECT payment_id, COUNT(*) AS attempts
		FROM payments.status_check
		GROUP BY payment_id
	)
	SELECT
		COALESCE(pa.attempts, 0) AS attempts,` + paymentJoinedColumns + paymentJoins + `
	LEFT JOIN payment_attempts AS pa ON pa.payment_id = p.id
	WHERE p.status::text IN ($1, $2)
	  AND p.token IS NOT NULL
	  AND p.provider::text = ANY($3)
	ORDER BY p.created_at ASC
	LIMIT $4
	FOR UPDATE OF p SKIP LOCKED
	`

	providerNames := make([]string, len(providers))
	for i, p := range providers {
		providerNames[i] = string(p)
	}

	payments := []Payment{}
	err := sqlExec.SelectContext(ctx, &payments, query, PendingPaymentStatus, ToConfirmPaymentStatus, pq.Array(providerNames), batchSize)
	if err != nil {
		return nil, fmt.Errorf("selecting payments for reconciliation: %w", err)
	}

	return payments, nil
}

// GetAbandonedCandidates returns PENDING payments created at or before cutoff, with the
// same ordering and locking discipline as the reconciliation select.
func (m *PaymentModel) GetAbandonedCandidates(ctx context.Context, sqlExec db.SQLExecuter, cutoff time.Time, limit int) ([]Payment, error) {
	query := `
	SELECT
		0 AS attempts,` + paymentJoinedColumns + paymentJoins + `
	WHERE p.status::text = $1
	  AND p.created_at <= $2
	ORDER BY p.created_at ASC
	FOR UPDATE OF p SKIP LOCKED
	LIMIT $3
	`

	payments := []Payment{}
	err := sqlExec.SelectContext(ctx, &payments, query, PendingPaymentStatus, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("selecting abandoned payment candidates: %w", err)
	}

	return payments, nil
}

// GetAuthorizedMissingCrm returns AUTHORIZED payments that have no PAYMENT_APPROVED
// queue row yet. The sender's self-heal sweep enqueues one for each.
func (m *PaymentModel) GetAuthorizedMissingCrm(ctx context.Context, sqlExec db.SQLExecuter, limit int) ([]Payment, error) {
	query := `
	SELECT
		0 AS attempts,` + paymentJoinedColumns + paymentJoins + `
	WHERE p.status::text = $1
	  AND NOT EXISTS (
		SELECT 1
		FROM payments.crm_push_queue AS q
		WHERE q.payment_id = p.id
		  AND q.operation = $2
	  )
	ORDER BY p.created_at ASC
	FOR UPDATE OF p SKIP LOCKED
	LIMIT $3
	`

	payments := []Payment{}
	err := sqlExec.SelectContext(ctx, &payments, query, AuthorizedPaymentStatus, PaymentApprovedOperation, limit)
	if err != nil {
		return nil, fmt.Errorf("selecting authorized payments without CRM queue row: %w", err)
	}

	return payments, nil
}

// UpdateStatus transitions a payment from fromStatus to toStatus, validating the move
// against the payment state machine. The first-transition timestamp column of toStatus
// is only filled when still NULL, and statusReason is left untouched when nil.
func (m *PaymentModel) UpdateStatus(ctx context.Context, sqlExec db.SQLExecuter, paymentID int64, fromStatus, toStatus PaymentStatus, statusReason *string) error {
	if err := fromStatus.TransitionTo(toStatus); err != nil {
		return fmt.Errorf("validating status transition for payment %d: %w", paymentID, err)
	}

	setClauses := []string{"status = $1", "updated_at = NOW()"}
	args := []any{toStatus}
	if statusReason != nil {
		setClauses = append(setClauses, fmt.Sprintf("status_reason = $%d", len(args)+1))
		args = append(args, *statusReason)
	}
	if col := toStatus.TimestampColumn(); col != "" {
		setClauses = append(setClauses, fmt.Sprintf("%s = COALESCE(%s, NOW())", col, col))
	}
	args = append(args, paymentID)

	query := fmt.Sprintf(`
	UPDATE payments.payment
	SET %s
	WHERE id = $%d
	`, strings.Join(setClauses, ", "), len(args))

	result, err := sqlExec.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating payment %d status to %s: %w", paymentID, toStatus, err)
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

// MarkAttemptsExhausted abandons a payment whose reconciliation attempt budget is spent.
func (m *PaymentModel) MarkAttemptsExhausted(ctx context.Context, sqlExec db.SQLExecuter, paymentID int64, fromStatus PaymentStatus) error {
	reason := "reconcile attempts exhausted"
	return m.UpdateStatus(ctx, sqlExec, paymentID, fromStatus, AbandonedPaymentStatus, &reason)
}

// GetMetrics computes the payments summary exposed by the health metrics endpoint.
func (m *PaymentModel) GetMetrics(ctx context.Context, sqlExec db.SQLExecuter) (*PaymentsMetrics, error) {
	query := `
	SELECT
		COUNT(*) AS total_payments,
		COUNT(*) FILTER (WHERE status::text = 'AUTHORIZED') AS authorized_payments,
		COALESCE(SUM(amount_minor), 0) AS total_amount_minor,
		MAX(created_at) AS last_payment_at
	FROM payments.payment
	`

	var metrics PaymentsMetrics
	err := sqlExec.GetContext(ctx, &metrics, query)
	if err != nil {
		return nil, fmt.Errorf("getting payments metrics: %w", err)
	}

	currenciesQuery := `
	SELECT DISTINCT context ->> 'currency' AS currency
	FROM payments.payment
	WHERE context IS NOT NULL
	  AND context ->> 'currency' IS NOT NULL
	`

	currencies := []string{}
	err = sqlExec.SelectContext(ctx, &currencies, currenciesQuery)
	if err != nil {
		return nil, fmt.Errorf("getting payments currencies: %w", err)
	}

	if len(currencies) == 1 {
		metrics.TotalAmountCurrency = &currencies[0]
	} else if len(currencies) > 1 {
		mixed := "MIXED"
		metrics.TotalAmountCurrency = &mixed
	}

	return &metrics, nil
}
