package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"farmalert/internal/clock"
	"farmalert/internal/config"
	"farmalert/internal/ingest"
	"farmalert/internal/logging"
	"farmalert/internal/notify"
	"farmalert/internal/state"
)

// Service composes runtime dependencies and process lifecycle.
// Params: config source and shared runtime components.
// Returns: runnable alert service.
type Service struct {
	cfg       config.Config
	logger    *slog.Logger
	closeLog  func()
	store     state.Store
	manager   *Manager
	httpSrv   *http.Server
	natsSub   interface{ Close() error }
	readyFlag atomic.Bool
	clock     clock.Clock
}

// NewService builds a service instance from a config source.
// Params: config source and clock implementation.
// Returns: initialized service or setup error.
func NewService(source config.Source, clk clock.Clock) (*Service, error) {
	cfg, err := config.LoadSnapshot(source)
	if err != nil {
		return nil, err
	}

	logger, closeLog, err := logging.New(logging.Config{
		Console: logging.SinkConfig(cfg.Log.Console),
		File:    logging.SinkConfig(cfg.Log.File),
	})
	if err != nil {
		return nil, err
	}

	service := &Service{
		cfg:      cfg,
		logger:   logger,
		closeLog: closeLog,
		clock:    clk,
	}

	store, err := buildStore(cfg, func(online bool) {
		service.onConnectivity(online)
	})
	if err != nil {
		closeLog()
		return nil, err
	}
	service.store = store

	dispatcher := notify.NewDispatcher(cfg.Notify, logger)
	service.manager = NewManager(cfg, logger, store, dispatcher, clk)

	if err := service.manager.Load(context.Background()); err != nil {
		service.cleanupInitResources()
		return nil, err
	}
	if err := service.buildHTTPServer(); err != nil {
		service.cleanupInitResources()
		return nil, err
	}
	if err := service.buildNATSSubscriber(); err != nil {
		service.cleanupInitResources()
		return nil, err
	}

	return service, nil
}

// Manager exposes the application facade.
// Params: none.
// Returns: composed manager.
func (s *Service) Manager() *Manager {
	return s.manager
}

// Run starts the service lifecycle and blocks until a shutdown signal.
// Params: root context for service runtime.
// Returns: terminal run error.
func (s *Service) Run(ctx context.Context) error {
	shutdownCtx, shutdownCancel := context.WithCancel(ctx)
	defer shutdownCancel()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("http server starting", "listen", s.cfg.Ingest.HTTP.Listen)
		err := s.httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	evaluateInterval := time.Duration(s.cfg.Service.EvaluateIntervalSec) * time.Second
	evaluateTicker := time.NewTicker(evaluateInterval)
	defer evaluateTicker.Stop()
	go func() {
		for {
			select {
			case <-shutdownCtx.Done():
				return
			case <-evaluateTicker.C:
				alerts := s.manager.EvaluateTick(shutdownCtx)
				if len(alerts) > 0 {
					s.logger.Info("evaluation pass triggered alerts", "count", len(alerts))
				}
			}
		}
	}()

	refreshInterval := time.Duration(s.cfg.Service.UnreadRefreshSec) * time.Second
	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()
	go func() {
		for {
			select {
			case <-shutdownCtx.Done():
				return
			case <-refreshTicker.C:
				s.logger.Debug("unread badge refreshed", "unread", s.manager.RefreshUnread())
			}
		}
	}()

	s.readyFlag.Store(true)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		return s.shutdown()
	case err := <-errChan:
		_ = s.shutdown()
		return fmt.Errorf("http server failed: %w", err)
	case <-sigChan:
		return s.shutdown()
	}
}

// shutdown closes runtime resources in dependency order.
// Params: none.
// Returns: first close error.
func (s *Service) shutdown() error {
	s.readyFlag.Store(false)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var firstErr error
	markErr := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("http shutdown failed", "error", err.Error())
		markErr(fmt.Errorf("http shutdown: %w", err))
	}
	if s.natsSub != nil {
		if err := s.natsSub.Close(); err != nil {
			s.logger.Error("nats subscriber close failed", "error", err.Error())
			markErr(fmt.Errorf("nats subscriber close: %w", err))
		}
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error("store close failed", "error", err.Error())
		markErr(fmt.Errorf("store close: %w", err))
	}
	if s.closeLog != nil {
		s.closeLog()
	}
	return firstErr
}

// cleanupInitResources closes partially initialized resources on
// startup failures.
// Params: none.
// Returns: all acquired resources closed best-effort.
func (s *Service) cleanupInitResources() {
	if s.natsSub != nil {
		_ = s.natsSub.Close()
		s.natsSub = nil
	}
	if s.httpSrv != nil {
		_ = s.httpSrv.Close()
		s.httpSrv = nil
	}
	if s.store != nil {
		_ = s.store.Close()
		s.store = nil
	}
	if s.closeLog != nil {
		s.closeLog()
		s.closeLog = nil
	}
}

// onConnectivity forwards transport connectivity reports to the manager.
// Params: reported state.
// Returns: side effect only.
func (s *Service) onConnectivity(online bool) {
	if s.manager == nil {
		return
	}
	s.manager.SetConnectivity(context.Background(), online)
}

// buildHTTPServer wires the router with snapshot and health endpoints.
// Params: none.
// Returns: setup error.
func (s *Service) buildHTTPServer() error {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Ingest.HTTP.HealthPath, func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusOK)
		_, _ = writer.Write([]byte("ok"))
	})
	mux.HandleFunc(s.cfg.Ingest.HTTP.ReadyPath, func(writer http.ResponseWriter, _ *http.Request) {
		if !s.readyFlag.Load() {
			writer.WriteHeader(http.StatusServiceUnavailable)
			_, _ = writer.Write([]byte("not-ready"))
			return
		}
		writer.WriteHeader(http.StatusOK)
		_, _ = writer.Write([]byte("ready"))
	})

	if s.cfg.Ingest.HTTP.Enabled {
		handler := ingest.NewHTTPHandler(s.manager, s.cfg.Ingest.HTTP.MaxBodyBytes)
		mux.Handle(s.cfg.Ingest.HTTP.SnapshotPath, handler)
	}

	s.httpSrv = &http.Server{
		Addr:              s.cfg.Ingest.HTTP.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return nil
}

// buildNATSSubscriber starts snapshot ingest over NATS when enabled.
// The subscriber shares the state store connection.
// Params: none.
// Returns: initialization error.
func (s *Service) buildNATSSubscriber() error {
	if isSingleMode(s.cfg) || !s.cfg.Ingest.NATS.Enabled {
		return nil
	}
	natsStore, ok := s.store.(*state.NATSStore)
	if !ok {
		return errors.New("nats ingest requires the nats state backend")
	}
	subscriber, err := ingest.NewNATSSubscriber(natsStore.Conn(), s.cfg.Ingest.NATS.Subject, s.manager, s.logger)
	if err != nil {
		return err
	}
	s.natsSub = subscriber
	return nil
}

// buildStore creates the runtime persistence backend from config.
// Params: config snapshot and connectivity callback.
// Returns: selected store backend.
func buildStore(cfg config.Config, onStatus state.StatusFunc) (state.Store, error) {
	if isSingleMode(cfg) {
		return state.NewMemoryStore(), nil
	}
	return state.NewNATSStore(state.NATSConfig{
		URL:               cfg.State.URL,
		Bucket:            cfg.State.Bucket,
		AllowCreateBucket: cfg.State.AllowCreateBucket,
	}, onStatus)
}

func isSingleMode(cfg config.Config) bool {
	return config.NormalizeServiceMode(cfg.Service.Mode) == config.ServiceModeSingle
}
