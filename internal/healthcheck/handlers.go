package healthcheck

import (
	"encoding/json"
	"net/http"
	"time"
)

// healthResponse is the /healthz and /readyz payload: an overall status
// plus the latest site cycle details.
type healthResponse struct {
	Status string `json:"status"`
	Snapshot
}

// HealthHandler serves /healthz: healthy while the last site cycle
// completed within twice the poll interval.
func HealthHandler(tracker *Tracker, pollInterval time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, tracker, tracker.Healthy(time.Now().UTC(), pollInterval))
	}
}

// ReadyHandler serves /readyz: ready once any site cycle has completed.
func ReadyHandler(tracker *Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, tracker, tracker.Ready())
	}
}

func writeHealth(w http.ResponseWriter, tracker *Tracker, ok bool) {
	resp := healthResponse{Status: "unavailable", Snapshot: tracker.Snapshot()}
	status := http.StatusServiceUnavailable
	if ok {
		resp.Status = "ok"
		status = http.StatusOK
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
