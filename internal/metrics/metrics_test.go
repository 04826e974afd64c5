package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveSubmission(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveSubmission("ok", 8, 8)
	m.ObserveSubmission("ok", 0, 0)
	m.ObserveSubmission("not_found", 0, 0)

	if got := testutil.ToFloat64(m.submissions.WithLabelValues("ok")); got != 2 {
		t.Errorf("ok = %v", got)
	}
	if got := testutil.ToFloat64(m.submissions.WithLabelValues("not_found")); got != 1 {
		t.Errorf("not_found = %v", got)
	}
	if got := testutil.CollectAndCount(m.scoreRatio); got != 1 {
		t.Errorf("score ratio series = %d", got)
	}
}

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	m := New(prometheus.NewRegistry())
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/tests/{testID}", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) })

	for _, id := range []string{"a", "b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/tests/"+id, nil))
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "/tests/{testID}", "404")); got != 2 {
		t.Fatalf("requests = %v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics handler code = %d", rec.Code)
	}
}
