package jobs

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ninjapay/payments-reconciler/internal/services"
)

const (
	pspPollerJobName = "psp_poller_job"
)

// PSPPollerJob runs one reconciliation cycle per tick.
type PSPPollerJob struct {
	pollerService      pollerServiceInterface
	jobIntervalSeconds int
}

type pollerServiceInterface interface {
	RunCycle(ctx context.Context) (services.PollerStats, error)
}

type PSPPollerJobOptions struct {
	JobIntervalSeconds int
	PollerService      *services.PollerService
}

func NewPSPPollerJob(opts PSPPollerJobOptions) *PSPPollerJob {
	if opts.JobIntervalSeconds < DefaultMinimumJobIntervalSeconds {
		log.Fatalf("job interval is not set for %s. Instantiation failed", pspPollerJobName)
	}
	return &PSPPollerJob{
		pollerService:      opts.PollerService,
		jobIntervalSeconds: opts.JobIntervalSeconds,
	}
}

func (j PSPPollerJob) GetName() string {
	return pspPollerJobName
}

func (j PSPPollerJob) GetInterval() time.Duration {
	return time.Duration(j.jobIntervalSeconds) * time.Second
}

func (j PSPPollerJob) Execute(ctx context.Context) error {
	stats, err := j.pollerService.RunCycle(ctx)
	if err != nil {
		return fmt.Errorf("executing PSPPollerJob: %w", err)
	}
	log.WithContext(ctx).Debugf("PSPPollerJob stats: %v", stats.ToMap())
	return nil
}

var _ Job = (*PSPPollerJob)(nil)
