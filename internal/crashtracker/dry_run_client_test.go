package crashtracker

import (
	"context"
	"errors"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_DryRunClient_LogAndReportErrors(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()
	log.SetLevel(log.ErrorLevel)

	client, err := NewDryRunClient()
	require.NoError(t, err)

	ctx := context.Background()
	client.LogAndReportErrors(ctx, errors.New("boom"), "processing cycle")

	require.Len(t, hook.Entries, 1)
	assert.Contains(t, hook.LastEntry().Message, "[DRY_RUN Crash Reporter] processing cycle: boom")
}

func Test_DryRunClient_FlushEvents_and_Clone(t *testing.T) {
	client, err := NewDryRunClient()
	require.NoError(t, err)

	assert.False(t, client.FlushEvents(time.Second))

	clone := client.Clone()
	assert.IsType(t, &dryRunClient{}, clone)
	assert.NotSame(t, client, clone)
}
