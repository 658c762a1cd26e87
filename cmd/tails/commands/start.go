package commands

import (
	"context"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/tails/internal/config"
	"git.home.luguber.info/inful/tails/internal/handler"
)

// StartCmd implements the 'start' command: serve a finished build without sources.
type StartCmd struct {
	Listen string `short:"l" help:"Address to serve on (overrides server.listen)"`
}

func (s *StartCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root, config.ModeProduction)
	if err != nil {
		return err
	}
	if s.Listen != "" {
		cfg.Server.Listen = s.Listen
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(cfg, g.Logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.handler.Init(ctx, handler.InitOptions{Building: cfg.Building}); err != nil {
		return err
	}

	srv := a.server(nil)
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return srv.ListenAndServe(ctx, cfg.Server.Listen) })
	eg.Go(func() error { return a.serveMetrics(ctx) })
	return eg.Wait()
}
