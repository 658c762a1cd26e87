package commands

import (
	"context"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/tails/internal/config"
	"git.home.luguber.info/inful/tails/internal/livereload"
)

// DevCmd implements the 'dev' command: build once, then recompile on change.
type DevCmd struct {
	Listen string `short:"l" help:"Address to serve on (overrides server.listen)"`
}

func (d *DevCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root, config.ModeDevelopment)
	if err != nil {
		return err
	}
	if d.Listen != "" {
		cfg.Server.Listen = d.Listen
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(cfg, g.Logger)
	if err != nil {
		return err
	}
	defer a.Close()

	h := a.handler
	if err := h.Build(ctx, cfg.StaticRoutes); err != nil {
		return err
	}

	hub := livereload.NewHub(livereload.WithLogger(g.Logger), livereload.WithRecorder(a.recorder))
	reload := h.AddEventListener()
	hub.Attach(reload)
	defer h.RemoveEventListener(reload)

	detach, err := a.attachNotify()
	if err != nil {
		return err
	}
	defer detach()

	srv := a.server(hub)
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return srv.ListenAndServe(ctx, cfg.Server.Listen) })
	eg.Go(func() error { return h.Watch(ctx, srv, cfg.StaticRoutes) })
	eg.Go(func() error { return a.serveMetrics(ctx) })
	return eg.Wait()
}
