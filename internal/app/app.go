package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"bookledger/internal/audit"
	"bookledger/internal/audit/ch"
	"bookledger/internal/audit/stubs"
	"bookledger/internal/config"
	"bookledger/internal/httpapi"
	"bookledger/internal/library"
	"bookledger/internal/metrics"
)

// App represents the application
type App struct {
	config    *config.Config
	logger    *zap.Logger
	registry  *prometheus.Registry
	sink      audit.Sink
	forwarder *audit.Forwarder
	library   *library.Service
	server    *http.Server
}

// New creates and initializes a new application instance from the environment
func New() (*App, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	return NewWithConfig(cfg, logger)
}

// NewWithConfig creates an application from an explicit configuration
func NewWithConfig(cfg *config.Config, logger *zap.Logger) (*App, error) {
	app := &App{
		config:   cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}

	logger.Info("Starting bookledger...")

	if err := app.initAudit(); err != nil {
		return nil, err
	}
	app.initLibrary()
	app.initHTTPServer()

	return app, nil
}

// NewLogger builds the process logger. "debug" selects the development
// configuration, any other zap level name the production one.
func NewLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

// initAudit sets up the audit sink and the forwarder feeding it
func (a *App) initAudit() error {
	var sink audit.Sink
	switch a.config.AuditSink {
	case config.AuditSinkNone:
		a.logger.Info("Audit trail disabled")
		return nil
	case config.AuditSinkMemory:
		a.logger.Info("Using in-memory audit sink")
		sink = stubs.NewMockSink()
	case config.AuditSinkClickHouse:
		tlsStatus := "without TLS"
		if a.config.ClickHouseUseTLS {
			tlsStatus = "with TLS"
		}
		a.logger.Info("Connecting to ClickHouse",
			zap.String("host", a.config.ClickHouseHost),
			zap.Int("port", a.config.ClickHousePort),
			zap.String("database", a.config.ClickHouseDatabase),
			zap.String("user", a.config.ClickHouseUser),
			zap.String("tls", tlsStatus),
		)
		chSink, err := ch.NewClickHouseSink(
			a.config.ClickHouseHost,
			a.config.ClickHousePort,
			a.config.ClickHouseDatabase,
			a.config.ClickHouseUser,
			a.config.ClickHousePassword,
			a.config.ClickHouseUseTLS,
		)
		if err != nil {
			return fmt.Errorf("failed to connect to ClickHouse: %w", err)
		}
		sink = chSink
	default:
		return fmt.Errorf("unknown audit sink %q", a.config.AuditSink)
	}

	if err := sink.Initialize(context.Background()); err != nil {
		return fmt.Errorf("failed to initialize audit sink: %w", err)
	}
	a.logger.Info("Audit sink initialized", zap.String("sink", a.config.AuditSink))

	a.sink = sink
	a.forwarder = audit.NewForwarder(sink, a.config.AuditBuffer, a.logger.Named("audit"))
	return nil
}

// initLibrary creates the library service and optionally seeds it
func (a *App) initLibrary() {
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	opts := []library.Option{library.WithMetrics(metrics.NewCollector(a.registry))}
	if a.forwarder != nil {
		opts = append(opts, library.WithAudit(a.forwarder))
	}
	a.library = library.NewService(a.logger.Named("library"), opts...)

	if a.config.SeedDemo {
		books := library.SampleBooks()
		a.library.Seed(books)
		a.logger.Info("Seeded sample books", zap.Int("book_count", len(books)))
	}
}

// initHTTPServer initializes the HTTP server for the API, health checks and metrics
func (a *App) initHTTPServer() {
	var opts []httpapi.Option
	if a.sink != nil {
		opts = append(opts, httpapi.WithAuditReader(a.sink))
	}
	api := httpapi.NewServer(a.library, a.registry, a.logger.Named("http"), opts...)

	a.server = &http.Server{
		Addr:         ":" + a.config.Port,
		Handler:      api.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Library returns the service the application serves
func (a *App) Library() *library.Service {
	return a.library
}

// Handler returns the HTTP handler, for tests
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Run starts the application and blocks until SIGINT or SIGTERM
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext serves HTTP and forwards audit events until ctx is done, then
// shuts everything down.
func (a *App) RunContext(ctx context.Context) error {
	forwarderCtx, cancelForwarder := context.WithCancel(context.Background())
	forwarderDone := make(chan struct{})
	if a.forwarder != nil {
		go func() {
			defer close(forwarderDone)
			if err := a.forwarder.Run(forwarderCtx); err != nil {
				a.logger.Error("Audit forwarder stopped", zap.Error(err))
			}
		}()
	} else {
		close(forwarderDone)
	}

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("Starting HTTP server", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("Shutting down...")
	case err := <-serverErr:
		a.logger.Error("HTTP server error", zap.Error(err))
		runErr = fmt.Errorf("http server: %w", err)
	}

	if err := a.shutdown(cancelForwarder, forwarderDone); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// shutdown stops the HTTP server, drains the audit forwarder and closes the sink
func (a *App) shutdown(cancelForwarder context.CancelFunc, forwarderDone <-chan struct{}) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("HTTP server shutdown error", zap.Error(err))
	}

	cancelForwarder()
	<-forwarderDone

	if a.sink != nil {
		if err := a.sink.Close(); err != nil {
			a.logger.Error("Error closing audit sink", zap.Error(err))
			return err
		}
	}

	a.logger.Info("Shutdown complete")
	_ = a.logger.Sync()
	return nil
}
