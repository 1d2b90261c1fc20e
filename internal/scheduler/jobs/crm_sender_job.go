package jobs

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ninjapay/payments-reconciler/internal/services"
)

const (
	crmSenderJobName = "crm_sender_job"
)

// CRMSenderJob drains the CRM push queue, one delivery cycle per tick.
type CRMSenderJob struct {
	senderService      senderServiceInterface
	jobIntervalSeconds int
}

type senderServiceInterface interface {
	RunCycle(ctx context.Context) (services.SenderStats, error)
}

type CRMSenderJobOptions struct {
	JobIntervalSeconds int
	SenderService      *services.SenderService
}

func NewCRMSenderJob(opts CRMSenderJobOptions) *CRMSenderJob {
	if opts.JobIntervalSeconds < DefaultMinimumJobIntervalSeconds {
		log.Fatalf("job interval is not set for %s. Instantiation failed", crmSenderJobName)
	}
	return &CRMSenderJob{
		senderService:      opts.SenderService,
		jobIntervalSeconds: opts.JobIntervalSeconds,
	}
}

func (j CRMSenderJob) GetName() string {
	return crmSenderJobName
}

func (j CRMSenderJob) GetInterval() time.Duration {
	return time.Duration(j.jobIntervalSeconds) * time.Second
}

func (j CRMSenderJob) Execute(ctx context.Context) error {
	stats, err := j.senderService.RunCycle(ctx)
	if err != nil {
		return fmt.Errorf("executing CRMSenderJob: %w", err)
	}
	log.WithContext(ctx).Debugf("CRMSenderJob stats: %v", stats.ToMap())
	return nil
}

var _ Job = (*CRMSenderJob)(nil)
