package httphandler

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"
)

// HealthHandler implements a simple liveness check. It deliberately does not
// touch the database so load balancers can probe it cheaply.
type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.WriteHeader(http.StatusOK)
	err := json.NewEncoder(rw).Encode(map[string]string{"status": "ok"})
	if err != nil {
		log.WithContext(req.Context()).Errorf("error writing health response: %s", err.Error())
	}
}
