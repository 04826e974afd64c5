package http

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/testgrade/internal/storage"
)

// MountAssets serves blobs written by the fs store, such as exported
// reports, under the URLs FSStore.URL hands out.
func MountAssets(r chi.Router, bs storage.BlobStore) {
	// GET /assets/*   -> returns the blob at whatever follows /assets/
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
		rc, err := bs.Get(r.Context(), key)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			http.Error(w, "blob store: "+err.Error(), http.StatusInternalServerError)
			return
		}
		defer rc.Close()
		ct := mime.TypeByExtension(path.Ext(key))
		if ct == "" {
			ct = "application/octet-stream"
		}
		w.Header().Set("Content-Type", ct)
		_, _ = io.Copy(w, rc)
	})
}
