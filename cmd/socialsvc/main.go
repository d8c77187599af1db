package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dhawalhost/sociallogin/internal/audit"
	"github.com/dhawalhost/sociallogin/internal/callback"
	"github.com/dhawalhost/sociallogin/internal/config"
	"github.com/dhawalhost/sociallogin/internal/events"
	"github.com/dhawalhost/sociallogin/internal/login"
	"github.com/dhawalhost/sociallogin/internal/social"
	"github.com/dhawalhost/sociallogin/pkg/database"
	"github.com/dhawalhost/sociallogin/pkg/logger"
	"github.com/dhawalhost/sociallogin/pkg/middleware"
	"github.com/dhawalhost/sociallogin/pkg/observability"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// resultRetention is how long a finished login stays readable.
const resultRetention = 5 * time.Minute

func main() {
	envFile := flag.String("env-file", ".env", "optional dotenv file")
	configPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*envFile, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, ServiceName: cfg.Tracing.ServiceName})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("socialsvc failed", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, observability.TracerConfig{
		ServiceName:  cfg.Tracing.ServiceName,
		Environment:  cfg.Tracing.Environment,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		Insecure:     cfg.Tracing.Insecure,
		SampleRatio:  cfg.Tracing.SampleRatio,
	}, log)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(flushCtx); err != nil {
			log.Warn("Tracer shutdown failed", zap.Error(err))
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	tracker := login.NewTracker(cfg.Server.LoginTimeout + resultRetention)
	presenter := login.NewPresenter(tracker, log)
	broker := callback.NewBroker(cfg.Server.PublicURL, log)
	dispatcher := events.NewDispatcher(cfg.Webhooks, log)
	defer dispatcher.Wait()

	hooks := []social.ResultHook{metrics.ResultHook(), dispatcher.ResultHook(loginID)}

	var auditHandler *audit.HTTPHandler
	if cfg.Database.DSN != "" {
		db, err := database.NewConnection(ctx, database.Config{DSN: cfg.Database.DSN})
		if err != nil {
			return err
		}
		defer db.Close()
		auditSvc, err := newAuditService(ctx, db)
		if err != nil {
			return err
		}
		hooks = append(hooks, audit.ResultHook(auditSvc, log, loginAndRequestID))
		auditHandler = audit.NewHTTPHandler(auditSvc, log)
	} else {
		log.Info("No database configured, audit log disabled")
	}

	adapter := social.New(cfg.Social(), adapterOptions(cfg, log, broker, presenter, hooks...)...)
	providers := adapter.Init(nil)
	log.Info("Social providers initialized",
		zap.Bool("facebook", providers.Facebook.IsInitialized),
		zap.Bool("google", providers.Google.IsInitialized),
	)

	loginSvc := login.NewService(adapter, tracker, *providers, cfg.Server.LoginTimeout, log)

	gin.SetMode(gin.ReleaseMode)
	r := newRouter(cfg, log, routes{
		gatherer: registry,
		metrics:  metrics,
		broker:   broker,
		logins:   loginSvc,
		audit:    auditHandler,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Server.Addr), zap.String("public_url", cfg.Server.PublicURL))
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

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newAuditService(ctx context.Context, db *sqlx.DB) (audit.Service, error) {
	store := audit.NewStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure audit schema: %w", err)
	}
	return audit.NewService(store), nil
}

func loginID(ctx context.Context) string {
	id, _ := login.LoginIDFromContext(ctx)
	return id
}

func loginAndRequestID(ctx context.Context) (string, string) {
	return loginID(ctx), middleware.RequestIDFromContext(ctx)
}
