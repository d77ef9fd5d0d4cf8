package healthcheck

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

// HealthCheck answers GET /health in front of another handler. It reports
// 503 until SetReady(true) is called.
type HealthCheck struct {
	ready atomic.Bool
}

// New creates a HealthCheck that is not ready yet.
func New() *HealthCheck {
	return &HealthCheck{}
}

// SetReady switches the reported status.
func (hc *HealthCheck) SetReady(ready bool) {
	hc.ready.Store(ready)
}

// Handler is used to control the flow of GET /health endpoint
func (hc *HealthCheck) Handler(h http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		if IsHealthCheckRequest(r) {
			hc.ServeHTTP(w, r)

			return
		}

		h.ServeHTTP(w, r)
	}

	return http.HandlerFunc(fn)
}

// ServeHTTP serve http request for health check
func (hc *HealthCheck) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !hc.ready.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintln(w, "starting")
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

// IsHealthCheckRequest is used to check if the request is a health check request
func IsHealthCheckRequest(r *http.Request) bool {
	return r.Method == http.MethodGet && r.URL.Path == "/health"
}
