package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"tadka/internal/clock"
	"tadka/internal/config"
	"tadka/internal/control"
	"tadka/internal/db"
	"tadka/internal/logger"
	"tadka/internal/metrics"
	"tadka/internal/publisher"
	"tadka/internal/queue"
	"tadka/internal/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// App wires the store, publisher, control service and HTTP server together.
type App struct {
	cfg       *config.Config
	log       *logger.Entry
	clock     clock.Clock
	store     db.Store
	producer  *queue.Producer
	publisher *publisher.Publisher
	control   *control.Service
	registry  *prometheus.Registry
	http      *http.Server
}

// Option overrides a dependency App would otherwise build from the config.
type Option func(*App)

// WithClock replaces the system clock.
func WithClock(c clock.Clock) Option {
	return func(a *App) { a.clock = c }
}

// WithStore injects an already opened store. App still migrates it and closes it.
func WithStore(s db.Store) Option {
	return func(a *App) { a.store = s }
}

// New connects to the backing services described by cfg. Nothing is started
// until Run.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{
		cfg:      cfg,
		log:      logger.WithComponent("app"),
		registry: prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.clock == nil {
		a.clock = clock.NewZoned(cfg.Location())
	}

	if a.store == nil {
		store, err := db.Open(ctx, cfg.Database.Driver, cfg.Database.DSN, db.Options{
			Clock:    a.clock,
			Defaults: cfg.Scheduler.Defaults(),
		})
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		a.store = store
	}

	deps := publisher.Deps{
		Articles: a.store,
		Settings: a.store,
		Clock:    a.clock,
		Metrics:  metrics.NewPublisher(a.registry),
	}
	if cfg.RabbitMQ.URL != "" {
		producer, err := queue.NewProducer(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue)
		if err != nil {
			a.store.Close()
			return nil, fmt.Errorf("rabbitmq producer: %w", err)
		}
		a.producer = producer
		deps.Notifier = producer
	} else {
		a.log.Info("RabbitMQ URL not set, publish events disabled")
	}

	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a.publisher = publisher.New(deps)
	a.control = control.NewService(a.store, a.publisher)

	srv := server.NewServer(server.Deps{
		Control:  a.control,
		Articles: a.store,
		Health:   a.store,
		Gatherer: a.registry,
	})
	a.http = &http.Server{Addr: cfg.HTTP.Addr, Handler: srv.Routes()}
	return a, nil
}

// Handler exposes the HTTP routes.
func (a *App) Handler() http.Handler {
	return a.http.Handler
}

// Publisher exposes the scheduled publisher.
func (a *App) Publisher() *publisher.Publisher {
	return a.publisher
}

// Run migrates the store, starts the publisher from the persisted settings and
// serves HTTP until ctx is cancelled. It then shuts HTTP down and waits for any
// in-flight scan within the configured shutdown timeout.
func (a *App) Run(ctx context.Context) error {
	if err := a.store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := a.publisher.Start(ctx); err != nil {
		return err
	}

	serveErr := make(chan error, 1)
	go func() {
		a.log.Infof("Starting HTTP server on %s", a.cfg.HTTP.Addr)
		if err := a.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("Shutting down...")
	case err := <-serveErr:
		runErr = fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.HTTP.ShutdownTimeout())
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("http shutdown: %w", err))
	}
	if err := a.publisher.Stop(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, err)
	}
	return runErr
}

// Close releases the producer and the store.
func (a *App) Close() {
	if a.producer != nil {
		a.producer.Close()
	}
	a.store.Close()
	a.log.Info("Application stopped")
}
