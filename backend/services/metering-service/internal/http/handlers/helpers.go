package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"submeter/backend/services/metering-service/internal/coordinator"
	"submeter/backend/services/metering-service/internal/meter"
)

const maxBodyBytes = 1 << 16

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// decodeJSON reads a JSON body into dst. An empty body is allowed when optional is set.
func decodeJSON(r *http.Request, dst interface{}, optional bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, coordinator.ErrUnknownMeter):
		return http.StatusNotFound
	case errors.Is(err, coordinator.ErrMeterExists):
		return http.StatusConflict
	case errors.Is(err, coordinator.ErrEmptyID),
		errors.Is(err, meter.ErrUnknownPolicy),
		errors.Is(err, meter.ErrInvalidAmount):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	writeError(w, status, message)
}
