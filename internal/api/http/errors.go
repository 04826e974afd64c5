package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/mind-engage/testgrade/internal/exam"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, exam.ErrInvalidDefinition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, exam.ErrTestNotFound):
		return http.StatusNotFound
	case errors.Is(err, exam.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

const maxBodyBytes = 1 << 20

// readBody reads at most maxBodyBytes of JSON. On failure it has already
// written 413 or 400 and returns false.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return nil, false
		}
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return nil, false
	}
	if !json.Valid(body) {
		http.Error(w, "bad json", http.StatusBadRequest)
		return nil, false
	}
	return body, true
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
