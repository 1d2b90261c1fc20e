package data

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/ninjapay/payments-reconciler/db"
)

type RuntimeEventType string

const (
	StartupRuntimeEvent   RuntimeEventType = "STARTUP"
	ShutdownRuntimeEvent  RuntimeEventType = "SHUTDOWN"
	HeartbeatRuntimeEvent RuntimeEventType = "HEARTBEAT"
)

// RuntimeEventModel appends service lifecycle and heartbeat rows. The instance id is
// fixed at construction so all rows of one process share it.
type RuntimeEventModel struct {
	dbConnectionPool db.DBConnectionPool
	instanceID       string
	hostName         string
	processID        int
}

func NewRuntimeEventModel(dbConnectionPool db.DBConnectionPool) *RuntimeEventModel {
	hostName, err := os.Hostname()
	if err != nil {
		hostName = "unknown"
	}

	return &RuntimeEventModel{
		dbConnectionPool: dbConnectionPool,
		instanceID:       fmt.Sprintf("reconciler-%s", uuid.NewString()[:8]),
		hostName:         hostName,
		processID:        os.Getpid(),
	}
}

func (m *RuntimeEventModel) InstanceID() string {
	return m.instanceID
}

func (m *RuntimeEventModel) Insert(ctx context.Context, sqlExec db.SQLExecuter, eventType RuntimeEventType, payload map[string]any) error {
	query := `
	INSERT INTO payments.service_runtime_log (
		instance_id,
		host_name,
		process_id,
		event_type,
		payload
	) VALUES ($1, $2, $3, $4, $5)
	`

	_, err := sqlExec.ExecContext(ctx, query,
		m.instanceID,
		m.hostName,
		m.processID,
		eventType,
		JSONMap(payload),
	)
	if err != nil {
		return fmt.Errorf("inserting %s runtime event: %w", eventType, err)
	}

	return nil
}
