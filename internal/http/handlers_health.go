package httpx

import (
	"io"
	"net/http"
)

const (
	healthResponse   = `{"status":"ok"}`
	startingResponse = `{"status":"starting"}`
)

// healthHandler returns a simple 200 OK status for liveness checks.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeHealth(w, r, http.StatusOK, healthResponse)
}

// readyHandler reports 200 once the startup session check has finished.
func readyHandler(ready Readiness) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready != nil && !ready.Ready() {
			writeHealth(w, r, http.StatusServiceUnavailable, startingResponse)
			return
		}
		writeHealth(w, r, http.StatusOK, healthResponse)
	}
}

func writeHealth(w http.ResponseWriter, r *http.Request, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.WriteString(w, body); err != nil {
		// Nothing more to do if the client connection is gone.
		return
	}
}
