package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/tails/internal/config"
	"git.home.luguber.info/inful/tails/internal/handler"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Mode   string   `short:"m" help:"Build mode (production|development|test)" default:"production"`
	Reload bool     `help:"Clear the build directory before building"`
	Static []string `help:"Static route patterns; pages matching one are pre-rendered (adds to static_routes)"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	mode, err := config.ParseMode(b.Mode)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(root, mode)
	if err != nil {
		return err
	}
	cfg.Building = true
	cfg.Reload = cfg.Reload || b.Reload

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(cfg, g.Logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.handler.Init(ctx, handler.InitOptions{Building: true}); err != nil {
		return err
	}
	if err := a.handler.Build(ctx, append(cfg.StaticRoutes, b.Static...)); err != nil {
		return err
	}
	fmt.Printf("Built %d modules into %s\n", len(a.handler.Keys()), cfg.BuildDir)
	return nil
}
