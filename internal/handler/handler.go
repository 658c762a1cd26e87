// Package handler owns the module graph of one build directory: the compiled modules,
// their manifest and the listeners told about recompilations.
package handler

import (
	"context"
	"log/slog"
	"runtime"
	"slices"
	"sync"

	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/tails/internal/artifact"
	"git.home.luguber.info/inful/tails/internal/config"
	"git.home.luguber.info/inful/tails/internal/events"
	"git.home.luguber.info/inful/tails/internal/history"
	"git.home.luguber.info/inful/tails/internal/manifest"
	"git.home.luguber.info/inful/tails/internal/metrics"
	"git.home.luguber.info/inful/tails/internal/module"
	"git.home.luguber.info/inful/tails/internal/plugin"
	"git.home.luguber.info/inful/tails/internal/plugin/builtin"
)

// ModuleReloader is notified after a changed file was recompiled, before listeners.
type ModuleReloader interface {
	ReloadModule(ctx context.Context, path string) error
}

// Defaults are the components every page is rendered with.
type Defaults struct {
	App       artifact.Artifact
	Document  artifact.Artifact
	Bootstrap string
}

// Handler is the module graph. One Handler serves one configuration.
type Handler struct {
	cfg         *config.Config
	env         *module.Env
	remote      builtin.Resolver
	logger      *slog.Logger
	recorder    metrics.Recorder
	history     history.Store
	clock       clockwork.Clock
	concurrency int

	mu       sync.RWMutex
	modules  map[string]*module.Module
	order    []string
	manifest manifest.Manifest
	defaults Defaults
	buildID  string

	buildMu    sync.Mutex
	manifestMu sync.Mutex
	locks      keyLocks

	listenersMu sync.Mutex
	listeners   []*events.Emitter
}

// Option configures a Handler.
type Option func(*Handler)

func WithLogger(l *slog.Logger) Option { return func(h *Handler) { h.logger = l } }

func WithRecorder(r metrics.Recorder) Option { return func(h *Handler) { h.recorder = r } }

func WithHistory(s history.Store) Option { return func(h *Handler) { h.history = s } }

func WithClock(c clockwork.Clock) Option { return func(h *Handler) { h.clock = c } }

// WithRemote fetches the runtime libraries through r during builds.
func WithRemote(r builtin.Resolver) Option { return func(h *Handler) { h.remote = r } }

// WithRenderer enables page rendering and static pre-rendering.
func WithRenderer(r module.Renderer) Option { return func(h *Handler) { h.env.Renderer = r } }

// WithRegistry shares an artifact registry, e.g. with a dev server.
func WithRegistry(r *artifact.Registry) Option { return func(h *Handler) { h.env.Registry = r } }

// WithConcurrency bounds parallel compilation during full builds.
func WithConcurrency(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.concurrency = n
		}
	}
}

// New creates an empty module graph.
func New(cfg *config.Config, pipeline *plugin.Pipeline, opts ...Option) *Handler {
	h := &Handler{
		cfg: cfg,
		env: &module.Env{
			Config:   cfg,
			Pipeline: pipeline,
			Registry: artifact.NewRegistry(),
			Runtime:  runtimeKeys(cfg),
		},
		logger:      slog.Default(),
		recorder:    metrics.NoopRecorder{},
		history:     history.NopStore{},
		clock:       clockwork.NewRealClock(),
		concurrency: runtime.GOMAXPROCS(0),
		modules:     make(map[string]*module.Module),
		manifest:    manifest.Manifest{},
		locks:       keyLocks{locks: make(map[string]*sync.Mutex)},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Config returns the handler's configuration.
func (h *Handler) Config() *config.Config { return h.cfg }

// Registry returns the artifact registry modules are written into.
func (h *Handler) Registry() *artifact.Registry { return h.env.Registry }

// Get returns the module for key.
func (h *Handler) Get(key string) (*module.Module, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	m, ok := h.modules[key]
	return m, ok
}

// Set stores m under key, keeping the original position of an existing key.
func (h *Handler) Set(key string, m *module.Module) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.setLocked(key, m)
}

func (h *Handler) setLocked(key string, m *module.Module) {
	if _, ok := h.modules[key]; !ok {
		h.order = append(h.order, key)
	}
	h.modules[key] = m
}

// Keys returns module keys in insertion order.
func (h *Handler) Keys() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.order)
}

// Manifest returns a copy of the current manifest.
func (h *Handler) Manifest() manifest.Manifest {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(manifest.Manifest, len(h.manifest))
	for k, v := range h.manifest {
		out[k] = v
	}
	return out
}

// Defaults returns the loaded default components.
func (h *Handler) Defaults() Defaults {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.defaults
}

// AddEventListener creates and registers a new emitter.
func (h *Handler) AddEventListener() *events.Emitter {
	e := events.NewEmitter()
	h.listenersMu.Lock()
	defer h.listenersMu.Unlock()
	h.listeners = append(h.listeners, e)
	return e
}

// RemoveEventListener clears e's callbacks and unregisters it.
func (h *Handler) RemoveEventListener(e *events.Emitter) {
	e.RemoveAllListeners()
	h.listenersMu.Lock()
	defer h.listenersMu.Unlock()
	if i := slices.Index(h.listeners, e); i >= 0 {
		h.listeners = slices.Delete(h.listeners, i, i+1)
	}
}

// ListenerCount returns the number of registered emitters.
func (h *Handler) ListenerCount() int {
	h.listenersMu.Lock()
	defer h.listenersMu.Unlock()
	return len(h.listeners)
}

func (h *Handler) emit(name, payload string) {
	h.listenersMu.Lock()
	targets := slices.Clone(h.listeners)
	h.listenersMu.Unlock()
	for _, e := range targets {
		e.Emit(name, payload)
	}
}

type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyLocks) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	return l
}
