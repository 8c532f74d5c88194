package handlers

import (
	"net/http"
)

// NewHealthHandler returns GET /health handler. subscribers may be nil.
func NewHealthHandler(subscribers func() int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]interface{}{"status": "ok"}
		if subscribers != nil {
			body["event_subscribers"] = subscribers()
		}
		writeJSON(w, http.StatusOK, body)
	}
}
