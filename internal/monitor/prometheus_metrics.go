package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
)

var SummaryVecMetrics = map[MetricTag]*prometheus.SummaryVec{
	HttpRequestDurationTag: prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace: "reconciler", Subsystem: "http", Name: string(HttpRequestDurationTag),
		Help: "HTTP requests durations, sliding window = 10m",
	},
		[]string{"status", "route", "method"},
	),
	SuccessfulQueryDurationTag: prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace: "reconciler", Subsystem: "db", Name: string(SuccessfulQueryDurationTag),
		Help: "Successful DB query durations",
	},
		[]string{"query_type"},
	),
	FailureQueryDurationTag: prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace: "reconciler", Subsystem: "db", Name: string(FailureQueryDurationTag),
		Help: "Failure DB query durations",
	},
		[]string{"query_type"},
	),
}

var CounterMetrics = map[MetricTag]prometheus.Counter{
	PollerCyclesCounterTag: prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "reconciler", Subsystem: "poller", Name: string(PollerCyclesCounterTag),
		Help: "A counter of completed PSP poller cycles",
	}),
	SenderCyclesCounterTag: prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "reconciler", Subsystem: "sender", Name: string(SenderCyclesCounterTag),
		Help: "A counter of completed CRM sender cycles",
	}),
}

var HistogramVecMetrics = map[MetricTag]*prometheus.HistogramVec{
	ProviderAPIRequestDurationTag: prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "reconciler", Subsystem: "provider", Name: string(ProviderAPIRequestDurationTag),
		Help: "A histogram of the PSP status API request durations",
	},
		ProviderAPILabelNames,
	),
	CrmAPIRequestDurationTag: prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "reconciler", Subsystem: "crm", Name: string(CrmAPIRequestDurationTag),
		Help: "A histogram of the CRM API request durations",
	},
		CrmAPILabelNames,
	),
}

var CounterVecMetrics = map[MetricTag]*prometheus.CounterVec{
	PaymentsReconciledCounterTag: prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reconciler", Subsystem: "poller", Name: string(PaymentsReconciledCounterTag),
		Help: "A counter of reconciled payments by provider and outcome",
	},
		ReconciliationLabelNames,
	),
	CrmNotificationsCounterTag: prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reconciler", Subsystem: "sender", Name: string(CrmNotificationsCounterTag),
		Help: "A counter of CRM notification attempts by operation and outcome",
	},
		CrmNotificationLabelNames,
	),
}
