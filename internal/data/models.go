package data

import (
	"errors"

	"github.com/ninjapay/payments-reconciler/db"
)

var (
	ErrRecordNotFound          = errors.New("record not found")
	ErrMismatchNumRowsAffected = errors.New("mismatch number of rows affected")
	ErrMissingInput            = errors.New("missing input")
)

type Models struct {
	Payments       *PaymentModel
	StatusChecks   *StatusCheckModel
	CrmQueue       *CrmQueueModel
	ProviderEvents *ProviderEventModel
	CrmEvents      *CrmEventModel
	RuntimeEvents  *RuntimeEventModel

	DBConnectionPool db.DBConnectionPool
}

func NewModels(dbConnectionPool db.DBConnectionPool) (*Models, error) {
	if dbConnectionPool == nil {
		return nil, errors.New("dbConnectionPool is required for NewModels")
	}
	return &Models{
		Payments:         &PaymentModel{dbConnectionPool: dbConnectionPool},
		StatusChecks:     &StatusCheckModel{dbConnectionPool: dbConnectionPool},
		CrmQueue:         &CrmQueueModel{dbConnectionPool: dbConnectionPool},
		ProviderEvents:   &ProviderEventModel{dbConnectionPool: dbConnectionPool},
		CrmEvents:        &CrmEventModel{dbConnectionPool: dbConnectionPool},
		RuntimeEvents:    NewRuntimeEventModel(dbConnectionPool),
		DBConnectionPool: dbConnectionPool,
	}, nil
}
