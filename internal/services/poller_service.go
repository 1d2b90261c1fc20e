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
	"github.com/ninjapay/payments-reconciler/internal/provider"
)

// PollerStats summarizes one reconciliation cycle.
type PollerStats struct {
	Payments  int
	Updated   int
	Failed    int
	Skipped   int
	Abandoned int
}

func (s PollerStats) ToMap() map[string]any {
	return map[string]any{
		"payments":  s.Payments,
		"updated":   s.Updated,
		"failed":    s.Failed,
		"skipped":   s.Skipped,
		"abandoned": s.Abandoned,
	}
}

// terminalReasonStatuses are the mapped statuses that overwrite status_reason with the
// reconciliation marker; everything else preserves the current reason.
var terminalReasonStatuses = map[data.PaymentStatus]bool{
	data.AuthorizedPaymentStatus: true,
	data.FailedPaymentStatus:     true,
	data.CanceledPaymentStatus:   true,
	data.RefundedPaymentStatus:   true,
}

const reconciliationStatusReason = "provider reconciliation update"

type PollerServiceOptions struct {
	Models           *data.Models
	Adapters         map[data.Provider]provider.Adapter
	MonitorService   monitor.MonitorServiceInterface
	Enabled          bool
	Providers        []data.Provider
	BatchSize        int
	AttemptOffsets   []int
	AbandonedTimeout time.Duration
	HeartbeatSpacing time.Duration
}

// PollerService reconciles open payments against their PSPs, one transaction per cycle.
type PollerService struct {
	models           *data.Models
	adapters         map[data.Provider]provider.Adapter
	monitorService   monitor.MonitorServiceInterface
	enabled          bool
	providers        []data.Provider
	batchSize        int
	attemptOffsets   []int
	abandonedTimeout time.Duration
	heartbeatSpacing time.Duration
	heartbeatAt      time.Time
}

func NewPollerService(opts PollerServiceOptions) (*PollerService, error) {
	if opts.Models == nil {
		return nil, fmt.Errorf("models are required for the poller service")
	}
	if len(opts.Adapters) == 0 {
		return nil, fmt.Errorf("at least one provider adapter is required")
	}
	if opts.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive")
	}
	if len(opts.AttemptOffsets) == 0 {
		return nil, fmt.Errorf("at least one attempt offset is required")
	}

	return &PollerService{
		models:           opts.Models,
		adapters:         opts.Adapters,
		monitorService:   opts.MonitorService,
		enabled:          opts.Enabled,
		providers:        opts.Providers,
		batchSize:        opts.BatchSize,
		attemptOffsets:   opts.AttemptOffsets,
		abandonedTimeout: opts.AbandonedTimeout,
		heartbeatSpacing: opts.HeartbeatSpacing,
	}, nil
}

// RunCycle executes one reconciliation pass. Gating off makes it a no-op that never
// opens a transaction.
func (s *PollerService) RunCycle(ctx context.Context) (PollerStats, error) {
	if !s.enabled {
		log.WithContext(ctx).Debug("Reconciliation is disabled, skipping cycle")
		return PollerStats{}, nil
	}

	stats, err := db.RunInTransactionWithResult(ctx, s.models.DBConnectionPool, nil, func(dbTx db.DBTransaction) (PollerStats, error) {
		return s.processOnce(ctx, dbTx)
	})
	if err != nil {
		return PollerStats{}, fmt.Errorf("running reconciliation cycle: %w", err)
	}

	s.monitorCounters(ctx, stats)
	log.WithContext(ctx).Infof(
		"PSP Poller: cycle completed - payments=%d, updated=%d, failed=%d, skipped=%d, abandoned=%d",
		stats.Payments, stats.Updated, stats.Failed, stats.Skipped, stats.Abandoned)

	return stats, nil
}

func (s *PollerService) processOnce(ctx context.Context, dbTx db.DBTransaction) (PollerStats, error) {
	stats := PollerStats{}

	payments, err := s.models.Payments.GetAllForReconciliation(ctx, dbTx, s.providers, s.batchSize)
	if err != nil {
		return stats, fmt.Errorf("selecting payments: %w", err)
	}
	log.WithContext(ctx).Infof("PSP Poller: found %d payments to reconcile", len(payments))

	now := time.Now().UTC()
	for _, payment := range payments {
		stats.Payments++

		adapter, ok := s.adapters[payment.Provider]
		if !ok {
			log.WithContext(ctx).Warnf("PSP Poller: no adapter configured for %s, payment_id=%d", payment.Provider, payment.ID)
			stats.Skipped++
			continue
		}

		attemptIndex := payment.Attempts
		if attemptIndex >= len(s.attemptOffsets) {
			if err := s.abandonExhausted(ctx, dbTx, payment); err != nil {
				return stats, err
			}
			stats.Abandoned++
			stats.Failed++
			log.WithContext(ctx).Warnf("PSP Poller: attempts exhausted for payment_id=%d, provider=%s, attempts=%d",
				payment.ID, payment.Provider, attemptIndex)
			continue
		}

		dueAt := payment.CreatedAt.Add(time.Duration(s.attemptOffsets[attemptIndex]) * time.Second)
		if now.Before(dueAt) {
			stats.Skipped++
			continue
		}

		result, callLog := adapter.Status(ctx, *payment.Token)
		s.monitorProviderCall(ctx, payment.Provider, result, callLog)

		err = s.models.ProviderEvents.Insert(ctx, dbTx, data.ProviderEventInsert{
			PaymentID:       payment.ID,
			Provider:        payment.Provider,
			RequestURL:      callLog.RequestURL,
			RequestHeaders:  callLog.RequestHeaders,
			RequestBody:     callLog.RequestBody,
			ResponseStatus:  callLog.ResponseStatus,
			ResponseHeaders: callLog.ResponseHeaders,
			ResponseBody:    callLog.ResponseBody,
			ErrorMessage:    callLog.ErrorMessage,
			LatencyMS:       &callLog.LatencyMS,
		})
		if err != nil {
			return stats, err
		}

		success := callLog.ErrorMessage == nil && result.ProviderStatus != nil
		err = s.models.StatusChecks.Insert(ctx, dbTx, data.StatusCheckInsert{
			PaymentID:      payment.ID,
			Provider:       payment.Provider,
			Success:        success,
			ProviderStatus: result.ProviderStatus,
			MappedStatus:   result.MappedStatus,
			ResponseCode:   result.ResponseCode,
			RawPayload:     result.Payload,
			ErrorMessage:   callLog.ErrorMessage,
		})
		if err != nil {
			return stats, err
		}

		if callLog.ErrorMessage != nil {
			log.WithContext(ctx).Errorf("PSP Poller: error checking payment_id=%d, provider=%s: %s",
				payment.ID, payment.Provider, *callLog.ErrorMessage)
		}

		if result.MappedStatus == nil {
			// this probe spent the last attempt in the budget
			if attemptIndex+1 >= len(s.attemptOffsets) {
				if err := s.abandonExhausted(ctx, dbTx, payment); err != nil {
					return stats, err
				}
				stats.Abandoned++
				stats.Failed++
				log.WithContext(ctx).Warnf("PSP Poller: no mapped status and attempts exhausted for payment_id=%d", payment.ID)
			}
			continue
		}

		if *result.MappedStatus == payment.Status {
			continue
		}

		if err := payment.Status.TransitionTo(*result.MappedStatus); err != nil {
			log.WithContext(ctx).Warnf("PSP Poller: ignoring status %s for payment_id=%d: %v",
				*result.MappedStatus, payment.ID, err)
			stats.Skipped++
			continue
		}

		var statusReason *string
		if terminalReasonStatuses[*result.MappedStatus] {
			reason := reconciliationStatusReason
			statusReason = &reason
		}

		err = s.models.Payments.UpdateStatus(ctx, dbTx, payment.ID, payment.Status, *result.MappedStatus, statusReason)
		if err != nil {
			return stats, err
		}
		stats.Updated++
		log.WithContext(ctx).Infof("PSP Poller: status updated for payment_id=%d, provider=%s, %s -> %s",
			payment.ID, payment.Provider, payment.Status, *result.MappedStatus)

		if *result.MappedStatus == data.AuthorizedPaymentStatus {
			payload := crm.BuildPayload(payment, data.PaymentApprovedOperation)
			err = s.models.CrmQueue.Enqueue(ctx, dbTx, payment.ID, data.PaymentApprovedOperation, payload)
			if err != nil {
				return stats, err
			}
			log.WithContext(ctx).Infof("PSP Poller: enqueued PAYMENT_APPROVED for payment_id=%d", payment.ID)
		}
	}

	abandonedCount, err := s.sweepAbandoned(ctx, dbTx, now)
	if err != nil {
		return stats, err
	}
	stats.Abandoned += abandonedCount

	if err := s.emitHeartbeat(ctx, dbTx, now, stats); err != nil {
		return stats, err
	}

	return stats, nil
}

// abandonExhausted terminally abandons a payment whose attempt budget is spent and
// queues the ABANDONED_CART notification.
func (s *PollerService) abandonExhausted(ctx context.Context, dbTx db.DBTransaction, payment data.Payment) error {
	if err := s.models.Payments.MarkAttemptsExhausted(ctx, dbTx, payment.ID, payment.Status); err != nil {
		return fmt.Errorf("marking payment %d attempts exhausted: %w", payment.ID, err)
	}

	payload := crm.BuildPayload(payment, data.AbandonedCartOperation)
	if err := s.models.CrmQueue.Enqueue(ctx, dbTx, payment.ID, data.AbandonedCartOperation, payload); err != nil {
		return fmt.Errorf("enqueueing ABANDONED_CART for payment %d: %w", payment.ID, err)
	}
	return nil
}

// sweepAbandoned abandons PENDING payments older than the timeout.
func (s *PollerService) sweepAbandoned(ctx context.Context, dbTx db.DBTransaction, now time.Time) (int, error) {
	if s.abandonedTimeout <= 0 {
		return 0, nil
	}

	cutoff := now.Add(-s.abandonedTimeout)
	candidates, err := s.models.Payments.GetAbandonedCandidates(ctx, dbTx, cutoff, s.batchSize)
	if err != nil {
		return 0, fmt.Errorf("selecting abandoned candidates: %w", err)
	}
	if len(candidates) > 0 {
		log.WithContext(ctx).Infof("PSP Poller: found %d abandoned payments", len(candidates))
	}

	reason := "abandoned timeout"
	for _, payment := range candidates {
		err = s.models.Payments.UpdateStatus(ctx, dbTx, payment.ID, payment.Status, data.AbandonedPaymentStatus, &reason)
		if err != nil {
			return 0, fmt.Errorf("abandoning payment %d: %w", payment.ID, err)
		}

		payload := crm.BuildPayload(payment, data.AbandonedCartOperation)
		err = s.models.CrmQueue.Enqueue(ctx, dbTx, payment.ID, data.AbandonedCartOperation, payload)
		if err != nil {
			return 0, fmt.Errorf("enqueueing ABANDONED_CART for payment %d: %w", payment.ID, err)
		}
		log.WithContext(ctx).Infof("PSP Poller: marked payment_id=%d as ABANDONED", payment.ID)
	}

	return len(candidates), nil
}

// emitHeartbeat writes at most one HEARTBEAT row per spacing interval. The first cycle
// always logs.
func (s *PollerService) emitHeartbeat(ctx context.Context, dbTx db.DBTransaction, now time.Time, stats PollerStats) error {
	if !s.heartbeatAt.IsZero() && now.Before(s.heartbeatAt) {
		return nil
	}
	s.heartbeatAt = now.Add(s.heartbeatSpacing)

	err := s.models.RuntimeEvents.Insert(ctx, dbTx, data.HeartbeatRuntimeEvent, map[string]any{"psp_poller": stats.ToMap()})
	if err != nil {
		return fmt.Errorf("recording poller heartbeat: %w", err)
	}
	return nil
}

func (s *PollerService) monitorCounters(ctx context.Context, stats PollerStats) {
	if s.monitorService == nil {
		return
	}
	if err := s.monitorService.MonitorCounters(monitor.PollerCyclesCounterTag, nil); err != nil {
		log.WithContext(ctx).Errorf("monitoring poller cycle counter: %v", err)
	}
}

func (s *PollerService) monitorProviderCall(ctx context.Context, providerName data.Provider, result provider.StatusResult, callLog provider.CallLog) {
	if s.monitorService == nil {
		return
	}

	outcome := "error"
	if callLog.ErrorMessage == nil && result.ProviderStatus != nil {
		outcome = "success"
	}
	err := s.monitorService.MonitorCounters(monitor.PaymentsReconciledCounterTag, monitor.ReconciliationLabels{
		Provider: string(providerName),
		Outcome:  outcome,
	}.ToMap())
	if err != nil {
		log.WithContext(ctx).Errorf("monitoring reconciliation counter: %v", err)
	}

	statusCode := ""
	if result.ResponseCode != nil {
		statusCode = strconv.Itoa(*result.ResponseCode)
	}
	err = s.monitorService.MonitorHistogram(float64(callLog.LatencyMS)/1000.0, monitor.ProviderAPIRequestDurationTag, monitor.ProviderAPILabels{
		Provider:   string(providerName),
		Status:     outcome,
		StatusCode: statusCode,
	}.ToMap())
	if err != nil {
		log.WithContext(ctx).Errorf("monitoring provider API histogram: %v", err)
	}
}
