package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/loqalabs/signspeak/internal/api"
	"github.com/loqalabs/signspeak/internal/bus"
	"github.com/loqalabs/signspeak/internal/capture"
	"github.com/loqalabs/signspeak/internal/classifier"
	"github.com/loqalabs/signspeak/internal/config"
	"github.com/loqalabs/signspeak/internal/eventstore"
	"github.com/loqalabs/signspeak/internal/natsserver"
	"github.com/loqalabs/signspeak/internal/session"
	"github.com/loqalabs/signspeak/internal/speech"
)

type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	metricsSrv  *http.Server
	tracerClose func(context.Context) error
	ready       atomic.Bool
	wg          sync.WaitGroup

	nats    *natsserver.EmbeddedServer
	bus     *bus.Client
	store   *eventstore.Store
	speech  *speech.Service
	session *session.Session
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

// Start brings up every component, serves HTTP and blocks until ctx is
// cancelled, then shuts everything down in reverse order.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	handler, err := r.startComponents(ctx, metricsHandler)
	if err != nil {
		r.stopComponents()
		r.closeTelemetry(context.Background())
		return err
	}

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
			cancel()
		}
	}()

	if metricsHandler != nil && r.cfg.Telemetry.PrometheusBind != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metricsHandler)
		r.metricsSrv = &http.Server{
			Addr:              r.cfg.Telemetry.PrometheusBind,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			if err := r.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				r.logger.Warn("metrics server failed", slog.String("error", err.Error()))
			}
		}()
	}

	if r.cfg.Session.AutoStart {
		if _, err := r.session.StartPolling(); err != nil {
			r.logger.Warn("auto-start could not acquire capture source", slog.String("error", err.Error()))
		}
	}

	r.ready.Store(true)
	r.logger.Info("runtime started", slog.String("addr", addr), slog.String("session_id", r.session.ID()))

	<-ctx.Done()
	r.ready.Store(false)
	r.logger.Info("runtime stopping")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	if r.metricsSrv != nil {
		_ = r.metricsSrv.Shutdown(shutdownCtx)
	}
	r.wg.Wait()

	r.stopComponents()
	r.closeTelemetry(shutdownCtx)
	return nil
}

func (r *Runtime) startComponents(ctx context.Context, metricsHandler http.Handler) (http.Handler, error) {
	busCfg := r.cfg.Bus
	srv, err := natsserver.Start(busCfg, r.logger)
	if err != nil {
		return nil, err
	}
	r.nats = srv
	if srv != nil {
		busCfg.Servers = []string{srv.ClientURL()}
	}

	r.bus, err = bus.Connect(ctx, busCfg, r.logger)
	if err != nil {
		return nil, err
	}

	r.store, err = eventstore.Open(ctx, r.cfg.EventStore, r.logger)
	if err != nil {
		return nil, fmt.Errorf("open event store: %w", err)
	}

	synth, err := speech.NewSynthesizer(r.cfg.Speech)
	if err != nil {
		return nil, err
	}
	r.speech = speech.NewService(ctx, r.cfg.Speech, r.bus, synth, r.logger)
	if err := r.speech.Start(); err != nil {
		return nil, fmt.Errorf("start speech service: %w", err)
	}

	labels, err := classifier.LoadLabels(r.cfg.Classifier.LabelsPath)
	if err != nil {
		return nil, err
	}
	cls, err := classifier.New(r.cfg.Classifier, labels)
	if err != nil {
		return nil, err
	}
	opener, err := capture.NewOpener(r.cfg.Capture)
	if err != nil {
		return nil, err
	}

	sessionID := uuid.NewString()
	if err := r.store.BeginSession(ctx, sessionID, r.cfg.Session.ActorID, r.cfg.Session.PrivacyScope); err != nil {
		r.logger.Warn("failed to record session start", slog.String("error", err.Error()))
	}
	r.session = session.New(ctx, r.cfg.Session, session.Deps{
		Opener:     opener,
		Classifier: cls,
		Speech:     speech.NewGateway(r.bus, r.cfg.Speech, sessionID),
		Journal:    newJournal(r.store, r.bus, r.logger),
		ID:         sessionID,
	}, r.logger)

	e := api.NewServer(r.logger)
	api.RegisterProbes(e, map[string]api.Probe{
		"runtime":     r.ready.Load,
		"bus":         r.bus.Healthy,
		"speech":      r.speech.Healthy,
		"event_store": func() bool { return r.store.Healthy(context.Background()) },
	})
	if metricsHandler != nil {
		e.GET("/metrics", echo.WrapHandler(metricsHandler))
	}
	api.NewHandlers(r.session, r.store, r.logger).Register(e.Group("/api"))
	return e, nil
}

func (r *Runtime) stopComponents() {
	if r.session != nil {
		if err := r.session.Close(); err != nil {
			r.logger.Warn("session close error", slog.String("error", err.Error()))
		}
	}
	if r.speech != nil {
		r.speech.Close()
	}
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			r.logger.Warn("event store close error", slog.String("error", err.Error()))
		}
	}
	r.bus.Close()
	r.nats.Shutdown()
}

func (r *Runtime) closeTelemetry(ctx context.Context) {
	if r.tracerClose == nil {
		return
	}
	if err := r.tracerClose(ctx); err != nil {
		r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
	}
}
