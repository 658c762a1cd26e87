package handler

import (
	"context"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/tails/internal/artifact"
	"git.home.luguber.info/inful/tails/internal/browser"
	"git.home.luguber.info/inful/tails/internal/compiler"
	"git.home.luguber.info/inful/tails/internal/config"
	"git.home.luguber.info/inful/tails/internal/foundation/errors"
	"git.home.luguber.info/inful/tails/internal/history"
	"git.home.luguber.info/inful/tails/internal/logfields"
	"git.home.luguber.info/inful/tails/internal/manifest"
	"git.home.luguber.info/inful/tails/internal/metrics"
	"git.home.luguber.info/inful/tails/internal/module"
	"git.home.luguber.info/inful/tails/internal/remote"
)

const (
	AppKey      = "/pages/_app.js"
	DocumentKey = "/pages/_document.js"
)

// InitOptions control startup.
type InitOptions struct {
	// Building skips the manifest; the caller is about to run a full build.
	Building bool
}

// Init prepares the handler. In production, unless building, the module graph is restored
// from the manifest and the default components are loaded; any failure is fatal.
func (h *Handler) Init(ctx context.Context, opts InitOptions) error {
	if h.cfg.Mode != config.ModeProduction || opts.Building {
		return nil
	}

	m, err := manifest.Load(h.cfg.ManifestPath())
	if err != nil {
		return err
	}
	if err := h.setManifestModules(m); err != nil {
		return err
	}
	h.logger.Info("Loaded manifest", logfields.Path(h.cfg.ManifestPath()), logfields.Count(len(m)))
	return h.loadDefaults(ctx)
}

// setManifestModules replaces the graph with the manifest's modules. Every entry must point
// at a written file; nothing is replaced when one is missing.
func (h *Handler) setManifestModules(m manifest.Manifest) error {
	keys := slices.Sorted(maps.Keys(m))
	for _, key := range keys {
		path := m[key].Path
		if path == "" {
			return errors.ConfigError("manifest entry has no path").
				Fatal().
				WithContext("module", key).
				Build()
		}
		if _, err := os.Stat(path); err != nil {
			return errors.WrapError(err, errors.CategoryConfig, "manifest references a missing module file").
				Fatal().
				WithContext("module", key).
				WithContext("path", path).
				Build()
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.modules = make(map[string]*module.Module, len(m))
	h.order = nil
	h.manifest = m
	for _, key := range keys {
		entry := m[key]
		writePath := key
		if rel, err := filepath.Rel(h.cfg.BuildDir, entry.Path); err == nil && !strings.HasPrefix(rel, "..") {
			writePath = "/" + filepath.ToSlash(rel)
		}
		mod := module.New(h.env, module.Options{
			Key:       key,
			FullPath:  filepath.Join(h.cfg.SrcDir, filepath.FromSlash(key)),
			Source:    entry.Module,
			HTML:      entry.HTML,
			WritePath: writePath,
		})
		h.env.Registry.Put(key, entry.Path, entry.Module)
		h.setLocked(key, mod)
	}
	h.recorder.SetModules(len(h.order))
	return nil
}

// Build compiles every source file, writes modules and the manifest, loads the default
// components and records the build. Any module failure fails the whole build and nothing
// is swapped in.
func (h *Handler) Build(ctx context.Context, staticRoutes []string) (err error) {
	h.buildMu.Lock()
	defer h.buildMu.Unlock()

	start := h.clock.Now()
	info := manifest.NewBuildInfo(h.cfg.Mode.String(), start)
	logger := h.logger.With(logfields.BuildID(info.ID))
	defer func() { h.recordBuild(ctx, info, err, h.clock.Since(start)) }()

	if h.cfg.Reload {
		logger.Info("Reload requested; clearing build directory", logfields.Path(h.cfg.BuildDir))
		if err := os.RemoveAll(h.cfg.BuildDir); err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "failed to clear build directory").
				WithContext("path", h.cfg.BuildDir).
				Build()
		}
	}
	if err := h.ensureRuntime(ctx); err != nil {
		return err
	}

	files, err := compiler.Walk(h.cfg.SrcDir, h.env.Pipeline.Handles)
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to walk source directory").
			WithContext("path", h.cfg.SrcDir).
			Build()
	}
	logger.Info("Compiling modules", logfields.Count(len(files)), logfields.Mode(h.cfg.Mode.String()))

	compiled := make([]*module.Module, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.concurrency)
	for i, file := range files {
		g.Go(func() error {
			m, err := h.compile(gctx, file, staticRoutes)
			if err != nil {
				return err
			}
			compiled[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	h.mu.Lock()
	h.modules = make(map[string]*module.Module, len(compiled))
	h.order = nil
	h.manifest = manifest.Manifest{}
	for _, m := range compiled {
		h.setLocked(m.Key, m)
	}
	h.buildID = info.ID
	h.mu.Unlock()
	h.recorder.SetModules(len(compiled))

	if err := h.WriteAll(ctx); err != nil {
		return err
	}
	if err := h.loadDefaults(ctx); err != nil {
		return err
	}
	if err := h.prerender(ctx); err != nil {
		return err
	}
	return h.writeBuildInfo(info, len(compiled), start)
}

// compile loads and transpiles one file into a fresh module.
func (h *Handler) compile(ctx context.Context, path string, staticRoutes []string) (*module.Module, error) {
	isPlugin := !compiler.IsScript(path) && h.env.Pipeline.Handles(path)
	m := module.New(h.env, module.Options{
		FullPath: path,
		IsStatic: !isPlugin && isStatic(staticRoutes, compiler.CleanKey(path, h.cfg.RootDir)),
		IsPlugin: isPlugin,
	})

	kind := "script"
	if isPlugin {
		kind = "plugin"
	}
	start := time.Now()
	err := m.Load(ctx)
	if err == nil {
		err = m.Transpile(ctx)
	}
	h.recorder.ObserveModuleCompile(kind, time.Since(start), err == nil)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// isStatic reports whether key contains one of the static route patterns. The _app and
// _document wrappers are never static.
func isStatic(routes []string, key string) bool {
	if strings.Contains(key, "_app") || strings.Contains(key, "_document") {
		return false
	}
	for _, r := range routes {
		if r != "" && strings.Contains(key, r) {
			return true
		}
	}
	return false
}

// WriteAll writes every module in insertion order, then the manifest.
func (h *Handler) WriteAll(ctx context.Context) error {
	h.manifestMu.Lock()
	defer h.manifestMu.Unlock()

	for _, key := range h.Keys() {
		m, ok := h.Get(key)
		if !ok {
			continue
		}
		if err := m.Write(ctx); err != nil {
			return err
		}
		h.mu.Lock()
		h.manifest[key] = entryFor(m)
		h.mu.Unlock()
	}

	return h.Manifest().Save(h.cfg.ManifestPath())
}

func entryFor(m *module.Module) manifest.Entry {
	return manifest.Entry{Path: m.OutputPath(), Module: m.Source, HTML: m.HTML}
}

// loadDefaults imports the _app and _document pages and the bootstrap script.
func (h *Handler) loadDefaults(ctx context.Context) error {
	app, err := h.importDefault(ctx, AppKey)
	if err != nil {
		return err
	}
	doc, err := h.importDefault(ctx, DocumentKey)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.defaults = Defaults{App: app, Document: doc, Bootstrap: browser.Bootstrap()}
	return nil
}

func (h *Handler) importDefault(ctx context.Context, key string) (artifact.Artifact, error) {
	m, ok := h.Get(key)
	if !ok {
		return artifact.Artifact{}, errors.ConfigError("could not find default component").
			WithContext("module", key).
			Build()
	}
	a, err := m.Import(ctx)
	if err != nil {
		return artifact.Artifact{}, errors.WrapError(err, errors.CategoryConfig, "failed to import default component").
			Fatal().
			WithContext("module", key).
			Build()
	}
	return a, nil
}

// prerender renders static pages once outside development and rewrites them with their
// markup.
func (h *Handler) prerender(ctx context.Context) error {
	if h.env.Renderer == nil || h.cfg.IsDev() {
		return nil
	}
	defaults := h.Defaults()
	rendered := 0
	for _, key := range h.Keys() {
		m, ok := h.Get(key)
		if !ok || !m.IsStatic || !m.Renderable() {
			continue
		}
		if _, err := m.FetchHTML(ctx, defaults.App, defaults.Document, nil); err != nil {
			return err
		}
		rendered++
	}
	if rendered == 0 {
		return nil
	}
	h.logger.Info("Pre-rendered static pages", logfields.Count(rendered))
	return h.WriteAll(ctx)
}

// ensureRuntime fetches the runtime libraries and records where they were written.
func (h *Handler) ensureRuntime(ctx context.Context) error {
	if h.remote == nil {
		return nil
	}
	urls := []string{h.cfg.Runtime.React, h.cfg.Runtime.ReactDOM, h.cfg.Runtime.ReactDOMServer}
	keys := make([]string, len(urls))
	for i, u := range urls {
		k, err := h.remote.Ensure(ctx, u)
		if err != nil {
			return errors.WrapError(err, errors.CategoryNetwork, "failed to fetch runtime library").
				WithContext("url", u).
				Build()
		}
		keys[i] = k
	}
	h.env.Runtime = module.RuntimePaths{React: keys[0], ReactDOM: keys[1], ReactDOMServer: keys[2]}
	return nil
}

func runtimeKeys(cfg *config.Config) module.RuntimePaths {
	return module.RuntimePaths{
		React:          remote.Key(cfg.Runtime.React),
		ReactDOM:       remote.Key(cfg.Runtime.ReactDOM),
		ReactDOMServer: remote.Key(cfg.Runtime.ReactDOMServer),
	}
}

func (h *Handler) writeBuildInfo(info *manifest.BuildInfo, modules int, start time.Time) error {
	rev, err := manifest.DetectRevision(h.cfg.RootDir)
	if err != nil {
		h.logger.Warn("Could not detect revision", logfields.Error(err))
	}
	hash, err := h.Manifest().Hash()
	if err != nil {
		return err
	}
	info.Revision = rev
	info.ConfigHash = h.cfg.Snapshot()
	info.Plugins = h.env.Pipeline.Names()
	info.Modules = modules
	info.ManifestHash = hash
	info.Duration = h.clock.Since(start).Milliseconds()
	return info.Save(h.cfg.BuildInfoPath())
}

func (h *Handler) recordBuild(ctx context.Context, info *manifest.BuildInfo, err error, d time.Duration) {
	outcome := metrics.BuildOutcomeSuccess
	switch {
	case ctx.Err() != nil:
		outcome = metrics.BuildOutcomeCanceled
	case err != nil:
		outcome = metrics.BuildOutcomeFailed
	}
	h.recorder.ObserveBuildDuration(d)
	h.recorder.IncBuildOutcome(outcome)

	rec := history.Record{
		BuildID:   info.ID,
		Kind:      history.KindBuild,
		Outcome:   string(outcome),
		Duration:  d,
		Timestamp: h.clock.Now(),
		Metadata:  map[string]string{"modules": strconv.Itoa(info.Modules), "mode": info.Mode},
	}
	if herr := h.history.Append(context.WithoutCancel(ctx), rec); herr != nil {
		h.logger.Warn("Failed to record build history", logfields.Error(herr))
	}

	logger := h.logger.With(logfields.BuildID(info.ID), logfields.Duration(d))
	if err != nil {
		logger.Error("Build failed", logfields.Error(err))
		return
	}
	logger.Info("Build completed", logfields.Count(info.Modules))
}
