// Package module implements a single compiled unit: a source file moving through
// Unloaded, ContentLoaded, Transpiled and Written, plus page rendering on top of it.
package module

import (
	"context"

	"git.home.luguber.info/inful/tails/internal/artifact"
	"git.home.luguber.info/inful/tails/internal/config"
	"git.home.luguber.info/inful/tails/internal/plugin"
)

// RuntimePaths are the build keys the runtime libraries were written to.
type RuntimePaths struct {
	React          string
	ReactDOM       string
	ReactDOMServer string
}

// RenderRequest is everything a renderer needs to produce a page's markup.
type RenderRequest struct {
	Key       string
	App       artifact.Artifact
	Document  artifact.Artifact
	Component artifact.Artifact
	Props     map[string]any
	Runtime   RuntimePaths
}

// Renderer turns a compiled page into HTML. Implementations are opaque to the module graph.
type Renderer interface {
	Render(ctx context.Context, req RenderRequest) (string, error)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, req RenderRequest) (string, error)

func (f RendererFunc) Render(ctx context.Context, req RenderRequest) (string, error) {
	return f(ctx, req)
}

// Env is shared by every module of one handler.
type Env struct {
	Config   *config.Config
	Pipeline *plugin.Pipeline
	Registry *artifact.Registry
	Renderer Renderer
	Runtime  RuntimePaths
}

// PluginOptions returns the options handed to every plugin hook.
func (e *Env) PluginOptions() plugin.Options {
	c := e.Config
	return plugin.Options{
		RootDir:   c.RootDir,
		SrcDir:    c.SrcDir,
		BuildDir:  c.BuildDir,
		Mode:      c.Mode.String(),
		Building:  c.Building,
		Reload:    c.Reload,
		ImportMap: c.ImportMap,
	}
}
