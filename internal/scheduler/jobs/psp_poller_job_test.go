package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ninjapay/payments-reconciler/internal/services"
)

type stubPollerService struct {
	stats services.PollerStats
	err   error
	calls int
}

func (s *stubPollerService) RunCycle(ctx context.Context) (services.PollerStats, error) {
	s.calls++
	return s.stats, s.err
}

func Test_PSPPollerJob(t *testing.T) {
	ctx := context.Background()

	t.Run("exposes name and interval", func(t *testing.T) {
		job := PSPPollerJob{jobIntervalSeconds: 15}
		assert.Equal(t, "psp_poller_job", job.GetName())
		assert.Equal(t, 15*time.Second, job.GetInterval())
	})

	t.Run("runs one cycle per execution", func(t *testing.T) {
		stub := &stubPollerService{stats: services.PollerStats{Updated: 2}}
		job := PSPPollerJob{pollerService: stub, jobIntervalSeconds: 15}

		err := job.Execute(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, stub.calls)
	})

	t.Run("wraps cycle errors", func(t *testing.T) {
		stub := &stubPollerService{err: errors.New("boom")}
		job := PSPPollerJob{pollerService: stub, jobIntervalSeconds: 15}

		err := job.Execute(ctx)
		require.EqualError(t, err, "executing PSPPollerJob: boom")
	})
}
