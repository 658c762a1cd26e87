package commands

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/tails/internal/config"
	"git.home.luguber.info/inful/tails/internal/devserver"
	"git.home.luguber.info/inful/tails/internal/foundation/errors"
	"git.home.luguber.info/inful/tails/internal/handler"
	"git.home.luguber.info/inful/tails/internal/history"
	"git.home.luguber.info/inful/tails/internal/livereload"
	"git.home.luguber.info/inful/tails/internal/metrics"
	"git.home.luguber.info/inful/tails/internal/notify"
	"git.home.luguber.info/inful/tails/internal/plugin/builtin"
	"git.home.luguber.info/inful/tails/internal/remote"
	"git.home.luguber.info/inful/tails/internal/render"
)

// app wires one configuration into a module handler and its collaborators.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	recorder metrics.Recorder
	registry *prom.Registry
	fetcher  *remote.Fetcher
	history  history.Store
	handler  *handler.Handler
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, recorder: metrics.NoopRecorder{}, history: history.NopStore{}}
	if cfg.Metrics.Enabled {
		a.registry = prom.NewRegistry()
		a.recorder = metrics.NewPrometheusRecorder(a.registry)
	}
	if cfg.History.Enabled {
		st, err := history.NewSQLiteStore(cfg.History.Path)
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryConfig, "failed to open history store").
				WithContext("path", cfg.History.Path).
				Build()
		}
		a.history = st
	}

	fetcher, err := remote.NewFromConfig(cfg, remote.WithRecorder(a.recorder), remote.WithLogger(logger))
	if err != nil {
		a.Close()
		return nil, err
	}
	a.fetcher = fetcher

	pipeline, err := builtin.NewPipeline(fetcher)
	if err != nil {
		a.Close()
		return nil, err
	}
	pipeline = pipeline.WithLogger(logger)

	a.handler = handler.New(cfg, pipeline,
		handler.WithLogger(logger),
		handler.WithRecorder(a.recorder),
		handler.WithHistory(a.history),
		handler.WithRemote(fetcher),
		handler.WithRenderer(render.Shell{}),
	)
	return a, nil
}

// Close releases the cache store and history database.
func (a *app) Close() {
	if a.fetcher != nil {
		if err := a.fetcher.Close(); err != nil {
			a.logger.Warn("Failed to close remote cache", "error", err)
		}
	}
	if err := a.history.Close(); err != nil {
		a.logger.Warn("Failed to close history store", "error", err)
	}
}

// server builds the HTTP front. Metrics are mounted on it when they share its address.
func (a *app) server(hub *livereload.Hub) *devserver.Server {
	opts := []devserver.Option{devserver.WithLogger(a.logger), devserver.WithHistory(a.history)}
	if hub != nil {
		opts = append(opts, devserver.WithHub(hub))
	}
	if a.registry != nil && a.cfg.Metrics.Listen == a.cfg.Server.Listen {
		opts = append(opts, devserver.WithMetrics(metrics.HTTPHandler(a.registry)))
	}
	return devserver.New(a.handler, opts...)
}

// serveMetrics runs a dedicated metrics listener until ctx is done.
func (a *app) serveMetrics(ctx context.Context) error {
	if a.registry == nil || a.cfg.Metrics.Listen == a.cfg.Server.Listen {
		return nil
	}
	srv := &http.Server{Addr: a.cfg.Metrics.Listen, Handler: metrics.HTTPHandler(a.registry), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	a.logger.Info("Serving metrics", "addr", a.cfg.Metrics.Listen)
	if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return errors.WrapError(err, errors.CategoryNetwork, "metrics server failed").Build()
	}
	return nil
}

// attachNotify forwards handler events to NATS when configured. The returned function
// detaches and closes the forwarder.
func (a *app) attachNotify() (func(), error) {
	if a.cfg.Notify.NATSURL == "" {
		return func() {}, nil
	}
	fwd, err := notify.NewNATSForwarder(a.cfg.Notify.NATSURL, a.cfg.Notify.Subject, a.logger)
	if err != nil {
		return nil, err
	}
	e := a.handler.AddEventListener()
	fwd.Attach(e)
	return func() {
		a.handler.RemoveEventListener(e)
		if err := fwd.Close(); err != nil {
			a.logger.Warn("Failed to close NATS connection", "error", err)
		}
	}, nil
}
