package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ParseMetricType(t *testing.T) {
	metricType, err := ParseMetricType("prometheus")
	require.NoError(t, err)
	assert.Equal(t, MetricTypePrometheus, metricType)

	_, err = ParseMetricType("statsd")
	assert.EqualError(t, err, `invalid metric type "STATSD"`)
}

func Test_GetClient(t *testing.T) {
	client, err := GetClient(MetricOptions{MetricType: MetricTypePrometheus})
	require.NoError(t, err)
	assert.Equal(t, MetricTypePrometheus, client.GetMetricType())

	_, err = GetClient(MetricOptions{MetricType: "UNKNOWN"})
	assert.EqualError(t, err, `unknown metric type: "UNKNOWN"`)
}

func Test_MetricTag_ListAll_registered_in_prometheus(t *testing.T) {
	var metricTag MetricTag
	for _, tag := range metricTag.ListAll() {
		_, inSummary := SummaryVecMetrics[tag]
		_, inCounter := CounterMetrics[tag]
		_, inCounterVec := CounterVecMetrics[tag]
		_, inHistogram := HistogramVecMetrics[tag]
		assert.Truef(t, inSummary || inCounter || inCounterVec || inHistogram,
			"metric tag %s is not registered in any prometheus metric map", tag)
	}
}
