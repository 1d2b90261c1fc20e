package httphandler

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/ninjapay/payments-reconciler/internal/data"
	"github.com/ninjapay/payments-reconciler/internal/serve/httperror"
)

// HealthMetricsHandler reports service information, database reachability and
// aggregate payment metrics. It sits behind the health bearer token.
type HealthMetricsHandler struct {
	AppName   string
	Version   string
	GitCommit string
	Models    *data.Models
}

type healthMetricsResponse struct {
	Service  serviceInfo    `json:"service"`
	Database databaseInfo   `json:"database"`
	Payments map[string]any `json:"payments,omitempty"`
}

type serviceInfo struct {
	AppName    string `json:"app_name"`
	Version    string `json:"version"`
	GitCommit  string `json:"git_commit,omitempty"`
	InstanceID string `json:"instance_id"`
}

type databaseInfo struct {
	Status string `json:"status"`
}

func (h HealthMetricsHandler) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	resp := healthMetricsResponse{
		Service: serviceInfo{
			AppName:    h.AppName,
			Version:    h.Version,
			GitCommit:  h.GitCommit,
			InstanceID: h.Models.RuntimeEvents.InstanceID(),
		},
		Database: databaseInfo{Status: "ok"},
	}

	if err := h.Models.DBConnectionPool.Ping(ctx); err != nil {
		log.WithContext(ctx).Errorf("health metrics: database ping failed: %s", err.Error())
		resp.Database.Status = "error"

		rw.Header().Set("Content-Type", "application/json; charset=utf-8")
		rw.WriteHeader(http.StatusServiceUnavailable)
		if encodeErr := json.NewEncoder(rw).Encode(resp); encodeErr != nil {
			log.WithContext(ctx).Errorf("error writing health metrics response: %s", encodeErr.Error())
		}
		return
	}

	metrics, err := h.Models.Payments.GetMetrics(ctx, h.Models.DBConnectionPool)
	if err != nil {
		httperror.InternalError(ctx, "Cannot retrieve payments metrics", err, nil).Render(rw)
		return
	}
	resp.Payments = metrics.ToMap()

	rw.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.WriteHeader(http.StatusOK)
	if err = json.NewEncoder(rw).Encode(resp); err != nil {
		log.WithContext(ctx).Errorf("error writing health metrics response: %s", err.Error())
	}
}
