package monitor

type MetricTag string

const (
	SuccessfulQueryDurationTag MetricTag = "successful_queries_duration"
	FailureQueryDurationTag    MetricTag = "failure_queries_duration"
	HttpRequestDurationTag     MetricTag = "requests_duration_seconds"
	// Reconciliation loops:
	PollerCyclesCounterTag       MetricTag = "poller_cycles_counter"
	SenderCyclesCounterTag       MetricTag = "sender_cycles_counter"
	PaymentsReconciledCounterTag MetricTag = "payments_reconciled_counter"
	CrmNotificationsCounterTag   MetricTag = "crm_notifications_counter"
	// Outbound API calls:
	ProviderAPIRequestDurationTag MetricTag = "provider_api_request_duration_seconds"
	CrmAPIRequestDurationTag      MetricTag = "crm_api_request_duration_seconds"
)

func (m MetricTag) ListAll() []MetricTag {
	return []MetricTag{
		SuccessfulQueryDurationTag,
		FailureQueryDurationTag,
		HttpRequestDurationTag,
		PollerCyclesCounterTag,
		SenderCyclesCounterTag,
		PaymentsReconciledCounterTag,
		CrmNotificationsCounterTag,
		ProviderAPIRequestDurationTag,
		CrmAPIRequestDurationTag,
	}
}
