package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"git.home.luguber.info/inful/tails/internal/foundation/errors"
	"git.home.luguber.info/inful/tails/internal/logfields"
)

// Pipeline applies plugins in registration order. It is immutable once built and safe for
// concurrent use.
type Pipeline struct {
	plugins []Plugin
	logger  *slog.Logger
}

// NewPipeline validates plugins and fixes their order. Names must be unique.
func NewPipeline(plugins ...Plugin) (*Pipeline, error) {
	seen := make(map[string]struct{}, len(plugins))
	for _, pl := range plugins {
		if err := pl.Validate(); err != nil {
			return nil, errors.WrapError(err, errors.CategoryValidation, "invalid plugin").Build()
		}
		if _, dup := seen[pl.Name]; dup {
			return nil, errors.ValidationError(fmt.Sprintf("plugin %s already registered", pl.Name)).Build()
		}
		seen[pl.Name] = struct{}{}
	}
	return &Pipeline{plugins: slices.Clone(plugins), logger: slog.Default()}, nil
}

// WithLogger returns a copy of the pipeline that logs to logger.
func (p *Pipeline) WithLogger(logger *slog.Logger) *Pipeline {
	cp := *p
	cp.logger = logger
	return &cp
}

// Plugins returns the registered plugins in order.
func (p *Pipeline) Plugins() []Plugin {
	return slices.Clone(p.plugins)
}

// Names returns plugin names in registration order.
func (p *Pipeline) Names() []string {
	names := make([]string, 0, len(p.plugins))
	for _, pl := range p.plugins {
		names = append(names, pl.Name)
	}
	return names
}

// Handles reports whether some plugin transforms path, making it a plugin module.
func (p *Pipeline) Handles(path string) bool {
	for _, pl := range p.plugins {
		if pl.Transform != nil && pl.Matches(path) {
			return true
		}
	}
	return false
}

// IsBinary reports whether path is handled by a binary plugin.
func (p *Pipeline) IsBinary(path string) bool {
	for _, pl := range p.plugins {
		if pl.Binary && pl.Transform != nil && pl.Matches(path) {
			return true
		}
	}
	return false
}

// ReloadAware reports whether a plugin handling path accepts hot reload.
func (p *Pipeline) ReloadAware(path string) bool {
	for _, pl := range p.plugins {
		if pl.AcceptsReload && pl.Matches(path) {
			return true
		}
	}
	return false
}

// TransformAll runs every module through the transform chain and then import resolution.
// Keys are processed in sorted order so the result does not depend on map iteration.
// The first hook error aborts the batch and no partial result is returned.
func (p *Pipeline) TransformAll(ctx context.Context, modules map[string]string, opts Options) (map[string]string, error) {
	out := make(map[string]string, len(modules))
	for _, key := range slices.Sorted(maps.Keys(modules)) {
		newKey, content, err := p.Transform(ctx, key, modules[key], opts)
		if err != nil {
			return nil, err
		}
		out[newKey] = content
	}
	return out, nil
}

// Transform runs one module through the chain. Each matching plugin sees the previous
// plugin's output; a plugin with Resolve may rename the module.
func (p *Pipeline) Transform(ctx context.Context, key, content string, opts Options) (string, string, error) {
	for _, pl := range p.plugins {
		if pl.Transform == nil || !pl.Matches(key) {
			continue
		}
		transformed, err := pl.Transform(ctx, Source{Path: key, Content: content}, opts)
		if err != nil {
			return "", "", hookError(err, pl, "transform", key)
		}
		content = transformed

		if pl.Resolve == nil {
			continue
		}
		renamed, err := pl.Resolve(ctx, key, opts)
		if err != nil {
			return "", "", hookError(err, pl, "resolve", key)
		}
		if renamed != "" && renamed != key {
			p.logger.Debug("Module renamed", logfields.Plugin(pl.Name), logfields.Path(key), logfields.Output(renamed))
			key = renamed
		}
	}

	content, err := p.ResolveImports(ctx, content, opts)
	if err != nil {
		return "", "", errors.WrapError(err, errors.CategoryPlugin, "import resolution failed").
			WithContext("path", key).
			Build()
	}
	return key, content, nil
}

// ResolvePath runs a bare path through every matching Resolve hook in order.
func (p *Pipeline) ResolvePath(ctx context.Context, path string, opts Options) (string, error) {
	current := path
	for _, pl := range p.plugins {
		if pl.Resolve == nil || !pl.Matches(current) {
			continue
		}
		resolved, err := pl.Resolve(ctx, current, opts)
		if err != nil {
			return "", hookError(err, pl, "resolve", current)
		}
		if resolved != "" {
			current = resolved
		}
	}
	return current, nil
}

// PreTransformAll runs matching PreTransform hooks, chained, over every module.
func (p *Pipeline) PreTransformAll(ctx context.Context, modules map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(modules))
	for _, key := range slices.Sorted(maps.Keys(modules)) {
		path, content := key, modules[key]
		for _, pl := range p.plugins {
			if pl.PreTransform == nil || !pl.Matches(path) {
				continue
			}
			var err error
			if path, content, err = pl.PreTransform(ctx, path, content); err != nil {
				return nil, hookError(err, pl, "preTransform", key)
			}
		}
		out[path] = content
	}
	return out, nil
}

// PostTransformAll runs matching PostTransform hooks, chained, over every compiled module.
func (p *Pipeline) PostTransformAll(ctx context.Context, modules map[string]Output) (map[string]Output, error) {
	out := make(map[string]Output, len(modules))
	for _, key := range slices.Sorted(maps.Keys(modules)) {
		path, mod := key, modules[key]
		for _, pl := range p.plugins {
			if pl.PostTransform == nil || !pl.Matches(path) {
				continue
			}
			var err error
			if path, mod, err = pl.PostTransform(ctx, path, mod); err != nil {
				return nil, hookError(err, pl, "postTransform", key)
			}
		}
		out[path] = mod
	}
	return out, nil
}

func hookError(err error, pl Plugin, hook, path string) error {
	return errors.WrapError(err, errors.CategoryPlugin, fmt.Sprintf("plugin %s: %s failed", pl.Name, hook)).
		WithContext("plugin", pl.Name).
		WithContext("hook", hook).
		WithContext("path", path).
		Build()
}
