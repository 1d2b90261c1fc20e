package data

import (
	"context"
	"fmt"

	"github.com/ninjapay/payments-reconciler/db"
)

type ProviderEventDirection string

const (
	OutboundProviderEventDirection ProviderEventDirection = "OUTBOUND"
	InboundProviderEventDirection  ProviderEventDirection = "INBOUND"
)

type ProviderEventOperation string

const (
	StatusProviderEventOperation ProviderEventOperation = "STATUS"
	CreateProviderEventOperation ProviderEventOperation = "CREATE"
	RefundProviderEventOperation ProviderEventOperation = "REFUND"
)

// ProviderEventInsert is the full request/response audit record of one provider call.
// Headers arrive already masked; bodies are persisted as-is.
type ProviderEventInsert struct {
	PaymentID       int64
	Provider        Provider
	Direction       ProviderEventDirection
	Operation       ProviderEventOperation
	RequestURL      string
	RequestHeaders  map[string]any
	RequestBody     map[string]any
	ResponseStatus  *int
	ResponseHeaders map[string]any
	ResponseBody    map[string]any
	ErrorMessage    *string
	LatencyMS       *int64
}

type ProviderEventModel struct {
	dbConnectionPool db.DBConnectionPool
}

func (m *ProviderEventModel) Insert(ctx context.Context, sqlExec db.SQLExecuter, insert ProviderEventInsert) error {
	if insert.Direction == "" {
		insert.Direction = OutboundProviderEventDirection
	}
	if insert.Operation == "" {
		insert.Operation = StatusProviderEventOperation
	}

	query := `
	INSERT INTO payments.provider_event_log (
		payment_id,
		provider,
		direction,
		operation,
		request_url,
		request_headers,
		request_body,
		response_status,
		response_headers,
		response_body,
		error_message,
		latency_ms
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := sqlExec.ExecContext(ctx, query,
		insert.PaymentID,
		insert.Provider,
		insert.Direction,
		insert.Operation,
		insert.RequestURL,
		JSONMap(insert.RequestHeaders),
		JSONMap(insert.RequestBody),
		insert.ResponseStatus,
		JSONMap(insert.ResponseHeaders),
		JSONMap(insert.ResponseBody),
		insert.ErrorMessage,
		insert.LatencyMS,
	)
	if err != nil {
		return fmt.Errorf("inserting provider event for payment %d: %w", insert.PaymentID, err)
	}

	return nil
}

// CrmEventInsert is the audit record of one CRM delivery attempt.
type CrmEventInsert struct {
	PaymentID       int64
	Operation       CrmOperation
	RequestURL      string
	RequestHeaders  map[string]any
	RequestBody     map[string]any
	ResponseStatus  *int
	ResponseHeaders map[string]any
	ResponseBody    map[string]any
	ErrorMessage    *string
	LatencyMS       *int64
}

type CrmEventModel struct {
	dbConnectionPool db.DBConnectionPool
}

func (m *CrmEventModel) Insert(ctx context.Context, sqlExec db.SQLExecuter, insert CrmEventInsert) error {
	query := `
	INSERT INTO payments.crm_event_log (
		payment_id,
		operation,
		request_url,
		request_headers,
		request_body,
		response_status,
		response_headers,
		response_body,
		error_message,
		latency_ms
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := sqlExec.ExecContext(ctx, query,
		insert.PaymentID,
		insert.Operation,
		insert.RequestURL,
		JSONMap(insert.RequestHeaders),
		JSONMap(insert.RequestBody),
		insert.ResponseStatus,
		JSONMap(insert.ResponseHeaders),
		JSONMap(insert.ResponseBody),
		insert.ErrorMessage,
		insert.LatencyMS,
	)
	if err != nil {
		return fmt.Errorf("inserting CRM event for payment %d: %w", insert.PaymentID, err)
	}

	return nil
}
