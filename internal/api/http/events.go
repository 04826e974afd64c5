package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mind-engage/testgrade/internal/exam"
	"github.com/mind-engage/testgrade/internal/watch"
)

var keepAliveInterval = 25 * time.Second

// GET /tests/{testID}/events
// Server-sent events: one "definition" event with the current version,
// then one per save, until the client goes away.
func TestEventsHandler(wt *watch.Watcher, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}
		id := chi.URLParam(r, "testID")
		ctx := r.Context()

		updates := make(chan exam.Definition, 8)
		unsubscribe, err := wt.Subscribe(ctx, id, func(d exam.Definition) {
			select {
			case updates <- d:
			case <-ctx.Done():
			}
		})
		if err != nil {
			writeError(w, err)
			return
		}
		defer unsubscribe()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		ping := time.NewTicker(keepAliveInterval)
		defer ping.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ping.C:
				if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
					return
				}
				flusher.Flush()
			case d := <-updates:
				b, err := json.Marshal(d)
				if err != nil {
					logger.Warn("encode definition event", zap.String("test_id", id), zap.Error(err))
					continue
				}
				if _, err := fmt.Fprintf(w, "event: definition\ndata: %s\n\n", b); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}
