package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/testgrade/internal/exam"
)

// PUT /tests/{testID}
// The body is a full definition; it replaces whatever was stored.
func PutTestHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "testID"))
		body, ok := readBody(w, r)
		if !ok {
			return
		}
		d, err := exam.Decode(body)
		if err != nil {
			writeError(w, err)
			return
		}
		if d.TestID == "" {
			d.TestID = id
		}
		if d.TestID != id {
			http.Error(w, fmt.Sprintf("testId %q does not match path %q", d.TestID, id), http.StatusBadRequest)
			return
		}
		if err := store.Save(r.Context(), d); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "id": d.TestID})
	}
}

// GET /tests/{testID}
func GetTestHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "testID")
		d, ok, err := store.Load(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		if !ok {
			writeError(w, fmt.Errorf("%w: %s", exam.ErrTestNotFound, id))
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}
