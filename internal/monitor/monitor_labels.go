package monitor

type HttpRequestLabels struct {
	Status string
	Route  string
	Method string
}

type DBQueryLabels struct {
	QueryType string
}

type ReconciliationLabels struct {
	Provider string
	Outcome  string
}

func (r ReconciliationLabels) ToMap() map[string]string {
	return map[string]string{
		"provider": r.Provider,
		"outcome":  r.Outcome,
	}
}

var ReconciliationLabelNames = []string{"provider", "outcome"}

type CrmNotificationLabels struct {
	Operation string
	Outcome   string
}

func (c CrmNotificationLabels) ToMap() map[string]string {
	return map[string]string{
		"operation": c.Operation,
		"outcome":   c.Outcome,
	}
}

var CrmNotificationLabelNames = []string{"operation", "outcome"}

type ProviderAPILabels struct {
	Provider   string
	Status     string
	StatusCode string
}

func (p ProviderAPILabels) ToMap() map[string]string {
	return map[string]string{
		"provider":    p.Provider,
		"status":      p.Status,
		"status_code": p.StatusCode,
	}
}

var ProviderAPILabelNames = []string{"provider", "status", "status_code"}

type CrmAPILabels struct {
	Status     string
	StatusCode string
}

func (c CrmAPILabels) ToMap() map[string]string {
	return map[string]string{
		"status":      c.Status,
		"status_code": c.StatusCode,
	}
}

var CrmAPILabelNames = []string{"status", "status_code"}
