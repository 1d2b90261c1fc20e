package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ninjapay/payments-reconciler/db"
	"github.com/ninjapay/payments-reconciler/internal/crm"
	"github.com/ninjapay/payments-reconciler/internal/data"
	"github.com/ninjapay/payments-reconciler/internal/monitor"
)

const crmSendFallbackError = "CRM send failed"

// SenderStats summarizes one delivery cycle.
type SenderStats struct {
	Sent    int
	Failed  int
	Retried int
	Healed  int
}

func (s SenderStats) ToMap() map[string]any {
	return map[string]any{
		"sent":    s.Sent,
		"failed":  s.Failed,
		"retried": s.Retried,
		"healed":  s.Healed,
	}
}

type SenderServiceOptions struct {
	Models           *data.Models
	Client           crm.ClientInterface
	MonitorService   monitor.MonitorServiceInterface
	Enabled          bool
	BatchSize        int
	RetryBackoff     []int
	HeartbeatSpacing time.Duration
}

// SenderService drains the CRM push queue, one transaction per cycle. Failed items
// retry indefinitely at the capped backoff.
type SenderService struct {
	models           *data.Models
	client           crm.ClientInterface
	monitorService   monitor.MonitorServiceInterface
	enabled          bool
	batchSize        int
	retryBackoff     []int
	heartbeatSpacing time.Duration
	heartbeatAt      time.Time
}

func NewSenderService(opts SenderServiceOptions) (*SenderService, error) {
	if opts.Models == nil {
		return nil, fmt.Errorf("models are required for the sender service")
	}
	if opts.Client == nil {
		return nil, fmt.Errorf("a CRM client is required for the sender service")
	}
	if opts.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive")
	}
	if len(opts.RetryBackoff) == 0 {
		return nil, fmt.Errorf("at least one retry backoff value is required")
	}

	return &SenderService{
		models:           opts.Models,
		client:           opts.Client,
		monitorService:   opts.MonitorService,
		enabled:          opts.Enabled,
		batchSize:        opts.BatchSize,
		retryBackoff:     opts.RetryBackoff,
		heartbeatSpacing: opts.HeartbeatSpacing,
	}, nil
}

// RunCycle executes one delivery pass. Gating off makes it a no-op that never opens a
// transaction.
func (s *SenderService) RunCycle(ctx context.Context) (SenderStats, error) {
	if !s.enabled {
		log.WithContext(ctx).Debug("CRM delivery is disabled, skipping cycle")
		return SenderStats{}, nil
	}

	stats, err := db.RunInTransactionWithResult(ctx, s.models.DBConnectionPool, nil, func(dbTx db.DBTransaction) (SenderStats, error) {
		return s.processOnce(ctx, dbTx)
	})
	if err != nil {
		return SenderStats{}, fmt.Errorf("running CRM delivery cycle: %w", err)
	}

	if s.monitorService != nil {
		if err := s.monitorService.MonitorCounters(monitor.SenderCyclesCounterTag, nil); err != nil {
			log.WithContext(ctx).Errorf("monitoring sender cycle counter: %v", err)
		}
	}
	log.WithContext(ctx).Infof("CRM Sender: cycle completed - sent=%d, failed=%d, retried=%d, healed=%d",
		stats.Sent, stats.Failed, stats.Retried, stats.Healed)

	return stats, nil
}

func (s *SenderService) processOnce(ctx context.Context, dbTx db.DBTransaction) (SenderStats, error) {
	stats := SenderStats{}

	healed, err := s.healMissedAuthorizations(ctx, dbTx)
	if err != nil {
		return stats, err
	}
	stats.Healed = healed

	reactivated, err := s.models.CrmQueue.ReactivateFailed(ctx, dbTx, s.batchSize)
	if err != nil {
		return stats, fmt.Errorf("reactivating failed queue items: %w", err)
	}
	stats.Retried += reactivated

	items, err := s.models.CrmQueue.GetPendingDue(ctx, dbTx, s.batchSize)
	if err != nil {
		return stats, fmt.Errorf("fetching pending queue items: %w", err)
	}

	now := time.Now().UTC()
	for _, item := range items {
		response, callLog := s.client.Send(ctx, item.Payload)
		s.monitorDelivery(ctx, item.Operation, response, callLog)

		err = s.models.CrmEvents.Insert(ctx, dbTx, data.CrmEventInsert{
			PaymentID:       item.PaymentID,
			Operation:       item.Operation,
			RequestURL:      callLog.RequestURL,
			RequestHeaders:  callLog.RequestHeaders,
			RequestBody:     callLog.RequestBody,
			ResponseStatus:  &response.StatusCode,
			ResponseHeaders: callLog.ResponseHeaders,
			ResponseBody:    response.Body,
			ErrorMessage:    callLog.ErrorMessage,
			LatencyMS:       &response.LatencyMS,
		})
		if err != nil {
			return stats, err
		}

		if response.StatusCode >= 200 && response.StatusCode < 300 && callLog.ErrorMessage == nil {
			err = s.models.CrmQueue.MarkSent(ctx, dbTx, item.ID, response.StatusCode, response.CrmID)
			if err != nil {
				return stats, fmt.Errorf("marking queue item %d sent: %w", item.ID, err)
			}
			stats.Sent++
			continue
		}

		attempts := item.Attempts + 1
		backoffIndex := attempts - 1
		if backoffIndex > len(s.retryBackoff)-1 {
			backoffIndex = len(s.retryBackoff) - 1
		}
		nextAttemptAt := now.Add(time.Duration(s.retryBackoff[backoffIndex]) * time.Second)

		var responseCode *int
		if response.StatusCode != 0 {
			responseCode = &response.StatusCode
		}
		lastError := crmSendFallbackError
		if callLog.ErrorMessage != nil {
			lastError = *callLog.ErrorMessage
		}

		err = s.models.CrmQueue.MarkFailed(ctx, dbTx, item.ID, attempts, &nextAttemptAt, responseCode, lastError)
		if err != nil {
			return stats, fmt.Errorf("marking queue item %d failed: %w", item.ID, err)
		}
		stats.Failed++
	}

	if err := s.emitHeartbeat(ctx, dbTx, now, stats); err != nil {
		return stats, err
	}

	return stats, nil
}

// healMissedAuthorizations enqueues PAYMENT_APPROVED for AUTHORIZED payments that have
// no queue row, covering enqueues lost to crashes between update and enqueue.
func (s *SenderService) healMissedAuthorizations(ctx context.Context, dbTx db.DBTransaction) (int, error) {
	payments, err := s.models.Payments.GetAuthorizedMissingCrm(ctx, dbTx, s.batchSize)
	if err != nil {
		return 0, fmt.Errorf("selecting authorized payments without queue rows: %w", err)
	}

	for _, payment := range payments {
		payload := crm.BuildPayload(payment, data.PaymentApprovedOperation)
		err = s.models.CrmQueue.Enqueue(ctx, dbTx, payment.ID, data.PaymentApprovedOperation, payload)
		if err != nil {
			return 0, fmt.Errorf("enqueueing PAYMENT_APPROVED for payment %d: %w", payment.ID, err)
		}
		log.WithContext(ctx).Infof("CRM Sender: self-healed missing PAYMENT_APPROVED for payment_id=%d", payment.ID)
	}

	return len(payments), nil
}

func (s *SenderService) emitHeartbeat(ctx context.Context, dbTx db.DBTransaction, now time.Time, stats SenderStats) error {
	if !s.heartbeatAt.IsZero() && now.Before(s.heartbeatAt) {
		return nil
	}
	s.heartbeatAt = now.Add(s.heartbeatSpacing)

	err := s.models.RuntimeEvents.Insert(ctx, dbTx, data.HeartbeatRuntimeEvent, map[string]any{"crm_sender": stats.ToMap()})
	if err != nil {
		return fmt.Errorf("recording sender heartbeat: %w", err)
	}
	return nil
}

func (s *SenderService) monitorDelivery(ctx context.Context, operation data.CrmOperation, response crm.Response, callLog crm.CallLog) {
	if s.monitorService == nil {
		return
	}

	outcome := "failure"
	if response.StatusCode >= 200 && response.StatusCode < 300 && callLog.ErrorMessage == nil {
		outcome = "success"
	}
	err := s.monitorService.MonitorCounters(monitor.CrmNotificationsCounterTag, monitor.CrmNotificationLabels{
		Operation: string(operation),
		Outcome:   outcome,
	}.ToMap())
	if err != nil {
		log.WithContext(ctx).Errorf("monitoring CRM notification counter: %v", err)
	}

	err = s.monitorService.MonitorHistogram(float64(response.LatencyMS)/1000.0, monitor.CrmAPIRequestDurationTag, monitor.CrmAPILabels{
		Status:     outcome,
		StatusCode: strconv.Itoa(response.StatusCode),
	}.ToMap())
	if err != nil {
		log.WithContext(ctx).Errorf("monitoring CRM API histogram: %v", err)
	}
}
