package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/psds-microservice/issue-tracker/internal/config"
	"github.com/psds-microservice/issue-tracker/internal/handler"
	"github.com/psds-microservice/issue-tracker/internal/kafka"
	"github.com/psds-microservice/issue-tracker/internal/repository"
	"github.com/psds-microservice/issue-tracker/internal/router"
	"github.com/psds-microservice/issue-tracker/internal/service"
)

// API is the HTTP application (api mode).
type API struct {
	cfg      *config.Config
	log      *slog.Logger
	store    repository.Store
	producer *kafka.Producer
	httpSrv  *http.Server
}

// NewAPI opens storage, applies migrations and wires the HTTP server.
func NewAPI(ctx context.Context, cfg *config.Config, log *slog.Logger) (*API, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	store, err := repository.Open(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return newAPI(cfg, log, store), nil
}

func newAPI(cfg *config.Config, log *slog.Logger, store repository.Store) *API {
	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicIssue, log)
	issueSvc := service.NewIssueService(store, producer)
	handlerChain := router.New(
		handler.NewIssueHandler(issueSvc, log),
		handler.NewHealthHandler(store, cfg.StorageDriver, log),
		log,
	)
	return &API{
		cfg:      cfg,
		log:      log,
		store:    store,
		producer: producer,
		httpSrv: &http.Server{
			Addr:              cfg.Addr(),
			Handler:           handlerChain,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// Handler exposes the HTTP handler chain.
func (a *API) Handler() http.Handler {
	return a.httpSrv.Handler
}

// Run serves HTTP and blocks until ctx is cancelled, then shuts down gracefully.
func (a *API) Run(ctx context.Context) error {
	host := a.cfg.AppHost
	if host == "0.0.0.0" {
		host = "localhost"
	}
	base := "http://" + host + ":" + a.cfg.HTTPPort
	a.log.Info("http: listening",
		"addr", a.httpSrv.Addr,
		"storage", a.cfg.StorageDriver,
		"events", a.producer.Enabled(),
		"issues", base+"/api/issues/{project}",
		"swagger", base+router.PathSwagger,
		"health", base+router.PathHealth,
	)

	errCh := make(chan error, 1)
	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			a.close()
			return fmt.Errorf("http: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.httpSrv.Shutdown(shutdownCtx); err != nil {
		a.close()
		return fmt.Errorf("http shutdown: %w", err)
	}
	a.close()
	a.log.Info("http: stopped")
	return nil
}

func (a *API) close() {
	if err := a.producer.Close(); err != nil {
		a.log.Warn("kafka: close producer", "error", err)
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("storage: close", "error", err)
	}
}
