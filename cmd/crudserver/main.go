// Command crudserver runs the schema-driven CRUD API server.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"

	"github.com/bitechdev/CrudSpec/pkg/auditlog"
	"github.com/bitechdev/CrudSpec/pkg/cache"
	"github.com/bitechdev/CrudSpec/pkg/clock"
	"github.com/bitechdev/CrudSpec/pkg/config"
	"github.com/bitechdev/CrudSpec/pkg/crudspec"
	"github.com/bitechdev/CrudSpec/pkg/dbmanager"
	"github.com/bitechdev/CrudSpec/pkg/errortracking"
	"github.com/bitechdev/CrudSpec/pkg/logger"
	"github.com/bitechdev/CrudSpec/pkg/metrics"
	"github.com/bitechdev/CrudSpec/pkg/middleware"
	"github.com/bitechdev/CrudSpec/pkg/schema"
	"github.com/bitechdev/CrudSpec/pkg/security"
	"go.uber.org/zap"
)

func main() {
	cfgMgr := config.NewManager()
	if err := cfgMgr.Load(); err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg, err := cfgMgr.GetConfig()
	if err != nil {
		log.Fatalf("Failed to get configuration: %v", err)
	}

	logger.Init(cfg.Logger.Dev)
	if cfg.Logger.Path != "" {
		logger.UpdateLoggerPath(cfg.Logger.Path, cfg.Logger.Dev)
	}
	logger.Info("CrudSpec server starting")

	if cfg.ErrorTracking.Enabled {
		provider, err := errortracking.NewProvider(errortracking.Config{
			Enabled:          true,
			Provider:         cfg.ErrorTracking.Provider,
			DSN:              cfg.ErrorTracking.DSN,
			Environment:      cfg.ErrorTracking.Environment,
			Release:          cfg.ErrorTracking.Release,
			Debug:            cfg.ErrorTracking.Debug,
			SampleRate:       cfg.ErrorTracking.SampleRate,
			TracesSampleRate: cfg.ErrorTracking.TracesSampleRate,
		})
		if err != nil {
			logger.Error("Failed to initialize error tracking: %v", err)
		} else {
			logger.InitErrorTracking(provider)
			defer logger.CloseErrorTracking()
		}
	}

	if err := setupCache(cfg); err != nil {
		logger.Error("Failed to initialize cache, using in-memory: %v", err)
	}
	defer cache.Close()

	var metricsProvider metrics.Provider
	if cfg.Metrics.Enabled {
		metricsProvider = metrics.NewPrometheusProvider(cfg.Metrics.Namespace)
	} else {
		metricsProvider = &metrics.NoOpProvider{}
	}
	metrics.SetProvider(metricsProvider)

	ctx := context.Background()
	if err := dbmanager.SetupManager(cfg.DBManager); err != nil {
		logger.Error("Failed to set up database manager: %v", err)
		os.Exit(1)
	}
	dbMgr, err := dbmanager.GetInstance()
	if err != nil {
		logger.Error("Failed to get database manager: %v", err)
		os.Exit(1)
	}
	if err := dbMgr.Connect(ctx); err != nil {
		logger.Error("Failed to connect databases: %v", err)
		os.Exit(1)
	}
	defer dbMgr.Close()

	auditLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create audit logger: %v", err)
	}

	handler := crudspec.NewHandler(crudspec.Deps{
		Schemas:    schema.NewLoader(cfg.Crud.SchemaDir),
		DB:         dbMgr,
		Authorizer: security.AllowAllAuthorizer{},
		Audit:      auditlog.NewZapSink(auditLogger),
		Clock:      clock.System{},
		Config:     cfg.Crud,
		Metrics:    metricsProvider,
	})

	r := mux.NewRouter()
	crudspec.SetupMuxRoutes(r, handler, nil)

	if cfg.Metrics.Enabled {
		r.Handle(cfg.Metrics.Path, metricsProvider.Handler()).Methods("GET")
	}
	r.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		if err := dbMgr.HealthCheck(req.Context()); err != nil {
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods("GET")

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      buildMiddleware(cfg, metricsProvider)(r),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("Listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed: %v", err)
			os.Exit(1)
		}
	}()

	stop, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	<-stop.Done()

	logger.Info("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed: %v", err)
	}
}

// buildMiddleware assembles the outer middleware chain, outermost
// first: panic recovery, request id, CORS, metrics, request timeout,
// size limit, CSRF, gzip.
func buildMiddleware(cfg *config.Config, provider metrics.Provider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		h := next
		if cfg.Middleware.GzipEnabled {
			h = middleware.Gzip(h)
		}
		if cfg.Middleware.CSRFEnabled {
			h = middleware.NewCSRFGuard(middleware.CSRFHeader).Middleware(h)
		}
		h = middleware.NewRequestSizeLimiter(cfg.Middleware.MaxRequestSize).Middleware(h)
		h = middleware.NewRequestTimeout(cfg.Server.RequestTimeout)(h)
		if p, ok := provider.(*metrics.PrometheusProvider); ok {
			h = p.Middleware(h)
		}
		h = middleware.CORS(cfg.CORS)(h)
		h = middleware.RequestID(h)
		h = middleware.PanicRecovery(h)
		return h
	}
}

// setupCache selects the cache provider from configuration.
func setupCache(cfg *config.Config) error {
	switch cfg.Cache.Provider {
	case "redis":
		return cache.UseRedis(&cache.RedisConfig{
			Host:     cfg.Cache.Redis.Host,
			Port:     cfg.Cache.Redis.Port,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
	case "memcache":
		return cache.UseMemcache(&cache.MemcacheConfig{
			Servers:      cfg.Cache.Memcache.Servers,
			MaxIdleConns: cfg.Cache.Memcache.MaxIdleConns,
			Timeout:      cfg.Cache.Memcache.Timeout,
		})
	default:
		return cache.UseMemory(nil)
	}
}
