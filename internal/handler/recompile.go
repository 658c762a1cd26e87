package handler

import (
	"context"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/tails/internal/compiler"
	"git.home.luguber.info/inful/tails/internal/history"
	"git.home.luguber.info/inful/tails/internal/logfields"
	"git.home.luguber.info/inful/tails/internal/metrics"
	"git.home.luguber.info/inful/tails/internal/module"
	"git.home.luguber.info/inful/tails/internal/watch"
)

// EventModify prefixes the event emitted after a path was recompiled.
const EventModify = "modify"

// Recompile rebuilds one source file. The new module replaces the old one only after it was
// written, so readers of the graph never observe a half-compiled module. It returns the
// module key, or "" when the file is not compiled at all.
func (h *Handler) Recompile(ctx context.Context, path string, staticRoutes []string) (string, error) {
	if compiler.Skip(filepath.Base(path)) || !(compiler.IsScript(path) || h.env.Pipeline.Handles(path)) {
		h.recorder.IncRecompile(metrics.ResultSkipped)
		return "", nil
	}

	isPlugin := !compiler.IsScript(path) && h.env.Pipeline.Handles(path)
	m := module.New(h.env, module.Options{
		FullPath: path,
		IsStatic: !isPlugin && isStatic(staticRoutes, compiler.CleanKey(path, h.cfg.RootDir)),
		IsPlugin: isPlugin,
	})
	lock := h.locks.get(m.Key)
	lock.Lock()
	defer lock.Unlock()

	start := h.clock.Now()
	err := m.Retranspile(ctx)
	h.recordRecompile(ctx, m.Key, err, h.clock.Since(start))
	if err != nil {
		return m.Key, err
	}

	// A full build swaps the whole graph; the swap here must not interleave with it.
	h.buildMu.Lock()
	h.manifestMu.Lock()
	h.mu.Lock()
	h.setLocked(m.Key, m)
	h.manifest[m.Key] = entryFor(m)
	h.mu.Unlock()
	err = h.Manifest().Save(h.cfg.ManifestPath())
	h.manifestMu.Unlock()
	h.buildMu.Unlock()
	if err != nil {
		return m.Key, err
	}
	h.recorder.SetModules(len(h.Keys()))

	if m.Key == AppKey || m.Key == DocumentKey {
		if err := h.loadDefaults(ctx); err != nil {
			return m.Key, err
		}
	}
	return m.Key, nil
}

func (h *Handler) recordRecompile(ctx context.Context, key string, err error, d time.Duration) {
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultFailed
	}
	h.recorder.IncRecompile(result)

	h.mu.RLock()
	buildID := h.buildID
	h.mu.RUnlock()
	rec := history.Record{
		BuildID:   buildID,
		Kind:      history.KindRecompile,
		Path:      key,
		Outcome:   string(result),
		Duration:  d,
		Timestamp: h.clock.Now(),
	}
	if err != nil {
		rec.Metadata = map[string]string{"error": err.Error()}
	}
	if herr := h.history.Append(context.WithoutCancel(ctx), rec); herr != nil {
		h.logger.Warn("Failed to record recompile history", logfields.Error(herr))
	}
}

// Watch recompiles changed files under the source directory until ctx is done.
func (h *Handler) Watch(ctx context.Context, target ModuleReloader, staticRoutes []string) error {
	src, err := watch.NewFSNotifySource(h.cfg.SrcDir, h.logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			h.logger.Warn("Failed to close watcher", logfields.Error(cerr))
		}
	}()
	return h.WatchSource(ctx, src, target, staticRoutes)
}

// WatchSource runs the watch loop over an arbitrary event source. target may be nil.
func (h *Handler) WatchSource(ctx context.Context, src watch.Source, target ModuleReloader, staticRoutes []string) error {
	loop := watch.NewLoop(
		func(ctx context.Context, path string) error {
			return h.handleChange(ctx, path, target, staticRoutes)
		},
		watch.WithDebounce(h.cfg.Watch.Debounce, h.clock),
		watch.WithLogger(h.logger),
		watch.WithRecorder(h.recorder),
	)
	h.logger.Info("Watching for changes", logfields.Path(h.cfg.SrcDir))
	return loop.Run(ctx, src)
}

func (h *Handler) handleChange(ctx context.Context, path string, target ModuleReloader, staticRoutes []string) error {
	key, err := h.Recompile(ctx, path, staticRoutes)
	if err != nil || key == "" {
		return err
	}
	if target != nil {
		if err := target.ReloadModule(ctx, key); err != nil {
			h.logger.Warn("Reload target failed", logfields.Module(key), logfields.Error(err))
		}
	}
	h.logger.Info("Recompiled module", logfields.Module(key))
	h.emit(EventModify+"-"+key, key)
	return nil
}
