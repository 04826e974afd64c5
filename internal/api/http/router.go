package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/mind-engage/testgrade/internal/exam"
	"github.com/mind-engage/testgrade/internal/grading"
	"github.com/mind-engage/testgrade/internal/identity"
	"github.com/mind-engage/testgrade/internal/metrics"
	"github.com/mind-engage/testgrade/internal/report"
	"github.com/mind-engage/testgrade/internal/storage"
	"github.com/mind-engage/testgrade/internal/submission"
	"github.com/mind-engage/testgrade/internal/watch"
)

// Deps is everything the router serves. Metrics, Blobs and Reports are
// optional.
type Deps struct {
	Tests   exam.Store
	Log     submission.Log
	Grader  *grading.Service
	Watcher *watch.Watcher
	Reports *report.Exporter
	Blobs   storage.BlobStore
	Metrics *metrics.Metrics
	Logger  *zap.Logger

	Auth            *identity.AuthService
	Admin           identity.Admin
	EnableLocalAuth bool

	CORSOrigins     []string
	RateLimitMax    int
	RateLimitWindow time.Duration
	RequestTimeout  time.Duration

	// Ready reports whether backends are reachable, for /readyz.
	Ready func(ctx context.Context) error
}

func NewRouter(d Deps) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(d.Logger), middleware.Recoverer)
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if d.Ready != nil {
			if err := d.Ready(r.Context()); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}
	if d.EnableLocalAuth && d.Auth != nil {
		r.Post("/auth/login", identity.LoginHandler(d.Auth, d.Admin))
	}

	r.Group(func(pr chi.Router) {
		if d.Auth != nil {
			pr.Use(identity.Middleware(d.Auth))
		}

		// long-lived stream, no request timeout
		pr.Get("/tests/{testID}/events", TestEventsHandler(d.Watcher, d.Logger))

		pr.Group(func(tr chi.Router) {
			timeout := d.RequestTimeout
			if timeout <= 0 {
				timeout = 30 * time.Second
			}
			tr.Use(middleware.Timeout(timeout))

			tr.Put("/tests/{testID}", PutTestHandler(d.Tests))
			tr.Get("/tests/{testID}", GetTestHandler(d.Tests))
			tr.With(RateLimit(d.RateLimitMax, d.RateLimitWindow)).
				Post("/tests/{testID}/submissions", SubmitHandler(d.Grader))
			tr.Get("/tests/{testID}/submissions", ListSubmissionsHandler(d.Log))
			if d.Reports != nil {
				tr.Post("/tests/{testID}/report", ExportReportHandler(d.Reports))
			}
			if d.Blobs != nil {
				tr.Route("/assets", func(ar chi.Router) {
					MountAssets(ar, d.Blobs)
				})
			}
		})
	})
	return r
}

// requestLogger is chi's middleware.Logger with zap as the sink.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)))
		})
	}
}
