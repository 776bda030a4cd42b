package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"tadka/internal/logger"
	"tadka/internal/models"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Errorf("Failed to encode response: %v", err)
	}
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrNotEligible):
		return http.StatusConflict
	case errors.Is(err, models.ErrPreconditionFailed):
		return http.StatusPreconditionFailed
	case errors.Is(err, models.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Log.WithFields(logger.Fields{
			"path":       r.URL.Path,
			"request_id": RequestIDFrom(r.Context()),
		}).Errorf("Request failed: %v", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", models.ErrInvalidArgument, msg)
}

// decodeJSON reads a bounded JSON body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return invalid(fmt.Sprintf("malformed request body: %v", err))
	}
	return nil
}
