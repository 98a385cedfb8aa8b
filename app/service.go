package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	apidispatch "github.com/kilianp07/retrieverd/api/dispatch"
	apiretrievers "github.com/kilianp07/retrieverd/api/retrievers"
	"github.com/kilianp07/retrieverd/config"
	"github.com/kilianp07/retrieverd/core/dispatch"
	"github.com/kilianp07/retrieverd/core/dispatch/logging"
	coremetrics "github.com/kilianp07/retrieverd/core/metrics"
	coremon "github.com/kilianp07/retrieverd/core/monitoring"
	"github.com/kilianp07/retrieverd/core/retrieverstatus"
	"github.com/kilianp07/retrieverd/core/scheduler"
	"github.com/kilianp07/retrieverd/infra/logger"
	"github.com/kilianp07/retrieverd/infra/metrics"
	"github.com/kilianp07/retrieverd/infra/monitoring"
	"github.com/kilianp07/retrieverd/infra/mqtt"
	"github.com/kilianp07/retrieverd/internal/eventbus"
	"github.com/kilianp07/retrieverd/simulator"
)

// Service orchestrates the dispatch manager, its host and the HTTP surfaces.
type Service struct {
	Manager *dispatch.Manager
	Status  *retrieverstatus.MemoryStore
	Logs    logging.LogStore

	cfg    *config.Config
	sink   coremetrics.MetricsSink
	bus    eventbus.EventBus
	host   *mqtt.Host
	game   *simulator.Game
	ticker *scheduler.Ticker
	log    logger.Logger
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	prefs, err := cfg.Dispatch.Preferences()
	if err != nil {
		return nil, fmt.Errorf("dispatch preferences: %w", err)
	}
	ticker, err := scheduler.New(cfg.Dispatch.TickInterval())
	if err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	bus := eventbus.New()
	manager, err := dispatch.NewManager(nil, nil, sink, bus, logg)
	if err != nil {
		return nil, fmt.Errorf("dispatch manager: %w", err)
	}
	manager.SetPreferences(prefs)

	svc := &Service{
		Manager: manager,
		Status:  retrieverstatus.NewMemoryStore(),
		cfg:     cfg,
		sink:    sink,
		bus:     bus,
		ticker:  ticker,
		log:     logg,
	}
	manager.SetStatusStore(svc.Status)

	store, err := logging.Open(cfg.Logging.StoreOptions())
	if err != nil {
		return nil, fmt.Errorf("log store: %w", err)
	}
	if store != nil {
		svc.Logs = store
		manager.SetLogStore(store)
	}

	switch cfg.Host.Mode {
	case config.HostModeSim:
		game, err := simulator.New(cfg.Simulator, nil)
		if err != nil {
			_ = svc.Close()
			return nil, fmt.Errorf("simulator: %w", err)
		}
		svc.game = game
		manager.SetHost(dispatch.APISource{API: game}, game)
	default:
		host, err := mqtt.NewHost(cfg.MQTT)
		if err != nil {
			_ = svc.Close()
			return nil, fmt.Errorf("mqtt host: %w", err)
		}
		svc.host = host
		manager.SetHost(host, host)
	}
	return svc, nil
}

// Run starts the service and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	metrics.StartEventCollector(ctx, s.bus, s.sink)

	if addr := s.promAddr(); addr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, addr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	if s.cfg.API.Addr != "" {
		go func() {
			if err := s.serveAPI(ctx); err != nil {
				s.log.Errorf("api server: %v", err)
			}
		}()
	}

	s.log.Infof("dispatch started: host=%s interval=%s", s.cfg.Host.Mode, s.ticker.Interval)
	s.Manager.Run(ctx, s.ticker.Start(ctx))
	return nil
}

func (s *Service) promAddr() string {
	if !s.cfg.Metrics.HasSink("prometheus") {
		return ""
	}
	if s.cfg.Metrics.ListenAddr == "" {
		return ":9090"
	}
	return s.cfg.Metrics.ListenAddr
}

// Handler returns the HTTP API routes.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	if s.Logs != nil {
		mux.Handle("/api/dispatch/logs", apidispatch.NewLogHandler(s.Logs, s.cfg.API.Token))
	}
	mux.Handle("/api/retrievers/status", apiretrievers.NewStatusHandler(s.Status))
	return mux
}

func (s *Service) serveAPI(ctx context.Context) error {
	srv := &http.Server{Addr: s.cfg.API.Addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("api server shutdown: %v", err)
		}
		cancel()
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	err := s.Manager.Close()
	if s.host != nil {
		s.host.Disconnect()
	}
	closeSink(s.sink)
	coremon.Flush(2 * time.Second)
	return err
}

func closeSink(sink coremetrics.MetricsSink) {
	switch v := sink.(type) {
	case *coremetrics.MultiSink:
		for _, s := range v.Sinks {
			closeSink(s)
		}
	case interface{ Close() }:
		v.Close()
	}
}
