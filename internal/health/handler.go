// Package health exposes the liveness endpoint.
package health

import "net/http"

// Handler responds with a static JSON liveness payload
func Handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
