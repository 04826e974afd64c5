// Package app builds the service from configuration.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	api "github.com/mind-engage/testgrade/internal/api/http"
	"github.com/mind-engage/testgrade/internal/cache"
	"github.com/mind-engage/testgrade/internal/config"
	"github.com/mind-engage/testgrade/internal/db"
	"github.com/mind-engage/testgrade/internal/exam"
	"github.com/mind-engage/testgrade/internal/grading"
	"github.com/mind-engage/testgrade/internal/identity"
	"github.com/mind-engage/testgrade/internal/metrics"
	"github.com/mind-engage/testgrade/internal/report"
	"github.com/mind-engage/testgrade/internal/storage"
	"github.com/mind-engage/testgrade/internal/submission"
	"github.com/mind-engage/testgrade/internal/watch"
)

// App owns every backend client. Close releases them in reverse order of
// creation.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	db    *sql.DB
	redis redis.UniversalClient

	Tests   exam.Store
	Log     submission.Log
	Bus     watch.Bus
	Blobs   storage.BlobStore
	Metrics *metrics.Metrics
	Grader  *grading.Service
	Watcher *watch.Watcher
	Reports *report.Exporter
	Auth    *identity.AuthService

	closers []func() error
}

func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}
	built := false
	defer func() {
		if !built {
			a.Close()
		}
	}()

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, rdb.Close)
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.redis = rdb
	}

	if err := a.initStores(ctx); err != nil {
		return nil, err
	}
	if err := a.initBus(); err != nil {
		return nil, err
	}
	a.Tests = watch.NewNotifyingStore(a.Tests, a.Bus, logger)
	if err := a.initBlobs(ctx); err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.New(reg)

	a.Grader = grading.NewService(a.Tests, a.Log, logger.Named("grading"), grading.WithObserver(a.Metrics))
	a.Watcher = watch.NewWatcher(a.Tests, a.Bus, logger.Named("watch"))
	a.Reports = report.NewExporter(a.Tests, a.Log, a.Blobs, logger.Named("report"))
	a.Auth = identity.NewAuthService(cfg.Auth.HMACSecret, cfg.Auth.TokenTTL)
	built = true
	return a, nil
}

func (a *App) initStores(ctx context.Context) error {
	switch a.cfg.Store.Backend {
	case "memory":
		a.Tests = exam.NewMemoryStore()
		a.Log = submission.NewMemoryLog()
	case "sql":
		dbh, err := db.Open(ctx, db.Driver(a.cfg.Store.DBDriver), a.cfg.Store.DBDSN)
		if err != nil {
			return fmt.Errorf("db open: %w", err)
		}
		a.db = dbh
		a.closers = append(a.closers, dbh.Close)
		a.Tests = exam.NewSQLStore(dbh)
		a.Log = submission.NewSQLLog(dbh)
	case "redis":
		a.Tests = exam.NewRedisStore(a.redis)
		a.Log = submission.NewRedisLog(a.redis)
	default:
		return fmt.Errorf("unsupported store backend %q", a.cfg.Store.Backend)
	}

	// a Redis-backed store is its own cache
	if a.redis != nil && a.cfg.Store.Backend != "redis" && a.cfg.Redis.CacheTTL > 0 {
		a.Tests = exam.NewCachedStore(a.Tests, cache.NewHelper(a.redis, "testgrade:cache:"), a.cfg.Redis.CacheTTL, a.logger.Named("cache"))
	}
	return nil
}

func (a *App) initBus() error {
	w := a.cfg.Watch
	switch w.Backend {
	case "gochannel":
		a.Bus = watch.NewGoChannelBus(w.Topic, a.logger)
	case "kafka":
		group := w.ConsumerGroup
		if group == "" {
			host, _ := os.Hostname()
			group = "testgrade-" + host
		}
		bus, err := watch.NewKafkaBus(w.Brokers, w.Topic, group, a.logger)
		if err != nil {
			return fmt.Errorf("kafka: %w", err)
		}
		a.Bus = bus
	case "redis":
		a.Bus = watch.NewRedisBus(a.redis, w.Topic, a.logger)
	default:
		return fmt.Errorf("unsupported watch backend %q", w.Backend)
	}
	a.closers = append(a.closers, a.Bus.Close)
	return nil
}

func (a *App) initBlobs(ctx context.Context) error {
	b := a.cfg.Blob
	switch b.Driver {
	case "fs":
		bs, err := storage.NewFSStore(b.BasePath, a.cfg.HTTP.PublicURL)
		if err != nil {
			return fmt.Errorf("blob store: %w", err)
		}
		a.Blobs = bs
	case "minio":
		bs, err := storage.NewMinIOStore(ctx, storage.MinIOConfig{
			Endpoint:  b.MinioEndpoint,
			AccessKey: b.MinioAccessKey,
			SecretKey: b.MinioSecretKey,
			Bucket:    b.MinioBucket,
			UseSSL:    b.MinioUseSSL,
			URLExpiry: b.URLExpiry,
		})
		if err != nil {
			return fmt.Errorf("minio: %w", err)
		}
		a.Blobs = bs
	default:
		return fmt.Errorf("unsupported blob driver %q", b.Driver)
	}
	return nil
}

// Ready pings the backends the service depends on.
func (a *App) Ready(ctx context.Context) error {
	if a.db != nil {
		if err := a.db.PingContext(ctx); err != nil {
			return fmt.Errorf("db: %w", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

func (a *App) Router() http.Handler {
	return api.NewRouter(api.Deps{
		Tests:   a.Tests,
		Log:     a.Log,
		Grader:  a.Grader,
		Watcher: a.Watcher,
		Reports: a.Reports,
		Blobs:   a.Blobs,
		Metrics: a.Metrics,
		Logger:  a.logger.Named("http"),

		Auth:            a.Auth,
		Admin:           identity.Admin{User: a.cfg.Auth.AdminUser, PassHash: a.cfg.Auth.AdminPassHash},
		EnableLocalAuth: a.cfg.Auth.EnableLocal,

		CORSOrigins:     a.cfg.CORS.AllowedOrigins,
		RateLimitMax:    a.cfg.RateLimit.MaxRequests,
		RateLimitWindow: a.cfg.RateLimit.Window,
		RequestTimeout:  a.cfg.HTTP.RequestTimeout,
		Ready:           a.Ready,
	})
}

// Run serves HTTP until ctx is done, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	// canceled on shutdown so that event streams end
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	srv := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	srv.RegisterOnShutdown(cancelBase)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening",
			zap.String("addr", a.cfg.HTTP.Addr),
			zap.String("store", a.cfg.Store.Backend),
			zap.String("watch", a.cfg.Watch.Backend),
			zap.String("blob", a.cfg.Blob.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
