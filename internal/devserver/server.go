// Package devserver serves a module graph over HTTP: compiled modules, rendered pages, the
// bootstrap script and the live reload endpoint.
package devserver

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"git.home.luguber.info/inful/tails/internal/foundation/errors"
	"git.home.luguber.info/inful/tails/internal/handler"
	"git.home.luguber.info/inful/tails/internal/history"
	"git.home.luguber.info/inful/tails/internal/livereload"
	"git.home.luguber.info/inful/tails/internal/logfields"
)

const (
	prefix          = "/_tails"
	shutdownTimeout = 5 * time.Second
)

// Server is the development and production HTTP front of a Handler.
type Server struct {
	handler *handler.Handler
	hub     *livereload.Hub
	metrics http.Handler
	history history.Store
	logger  *slog.Logger
	errs    *errors.HTTPErrorAdapter
	router  *chi.Mux

	mu     sync.RWMutex
	routes map[string]string
}

// Option configures a Server.
type Option func(*Server)

// WithHub mounts the live reload websocket.
func WithHub(h *livereload.Hub) Option { return func(s *Server) { s.hub = h } }

// WithMetrics mounts a metrics handler at /metrics.
func WithMetrics(h http.Handler) Option { return func(s *Server) { s.metrics = h } }

// WithHistory exposes recent build records.
func WithHistory(st history.Store) Option { return func(s *Server) { s.history = st } }

func WithLogger(l *slog.Logger) Option { return func(s *Server) { s.logger = l } }

// New creates a server for h. Routes are derived from the pages currently in the graph.
func New(h *handler.Handler, opts ...Option) *Server {
	s := &Server{
		handler: h,
		logger:  slog.Default(),
		router:  chi.NewRouter(),
		routes:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.errs = errors.NewHTTPErrorAdapter(s.logger)
	s.setupRoutes()
	s.refreshRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.logRequests)

	s.router.Get(prefix+"/health", s.handleHealth)
	s.router.Get(prefix+"/bootstrap.js", s.handleBootstrap)
	s.router.Get(prefix+"/livereload.js", s.handleLiveReloadScript)
	s.router.Get(prefix+"/manifest", s.handleManifest)
	if s.hub != nil {
		s.router.Handle(prefix+"/livereload", s.hub)
	}
	if s.history != nil {
		s.router.Get(prefix+"/history", s.handleHistory)
	}
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics)
	}

	files := http.FileServer(http.Dir(s.handler.Config().BuildDir))
	s.router.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		if key, ok := s.route(r.URL.Path); ok {
			s.servePage(w, r, key)
			return
		}
		if a, ok := s.handler.Registry().Get(r.URL.Path); ok && path.Ext(a.Path) == ".js" {
			serveJS(w, a.Source)
			return
		}
		files.ServeHTTP(w, r)
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("Serving", slog.String("addr", addr))

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.WrapError(err, errors.CategoryNetwork, "server failed").
			WithContext("addr", addr).
			Build()
	case <-ctx.Done():
	}

	if s.hub != nil {
		s.hub.Shutdown()
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// ReloadModule refreshes the page routes after key was recompiled.
func (s *Server) ReloadModule(_ context.Context, key string) error {
	if _, ok := s.handler.Get(key); !ok {
		return errors.NewError(errors.CategoryNotFound, "reloaded module is not in the graph").
			WithContext("module", key).
			Build()
	}
	s.refreshRoutes()
	s.logger.Debug("Reloaded module", logfields.Module(key))
	return nil
}

func (s *Server) refreshRoutes() {
	routes := make(map[string]string)
	for _, key := range s.handler.Keys() {
		m, ok := s.handler.Get(key)
		if !ok || !m.Renderable() {
			continue
		}
		routes[RouteFor(key)] = key
	}
	s.mu.Lock()
	s.routes = routes
	s.mu.Unlock()
}

func (s *Server) route(p string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.routes[strings.TrimSuffix(p, ".html")]
	return key, ok
}

// RouteFor maps a page key to its URL path: /pages/index.js is served at / and
// /pages/blog/post.js at /blog/post.
func RouteFor(key string) string {
	r := strings.TrimSuffix(strings.TrimPrefix(key, "/pages"), path.Ext(key))
	r = strings.TrimSuffix(r, "/index")
	if r == "" {
		return "/"
	}
	return r
}

func (s *Server) servePage(w http.ResponseWriter, r *http.Request, key string) {
	m, ok := s.handler.Get(key)
	if !ok {
		s.errs.WriteErrorResponse(w, r, errors.NewError(errors.CategoryNotFound, "page not found").
			WithContext("module", key).
			Build())
		return
	}

	d := s.handler.Defaults()
	html, err := m.FetchHTML(r.Context(), d.App, d.Document, queryProps(r))
	if err != nil {
		s.errs.WriteErrorResponse(w, r, errors.WrapError(err, errors.CategoryRuntime, "failed to render page").
			WithContext("module", key).
			Build())
		return
	}
	if s.hub != nil && s.handler.Config().IsDev() {
		html = injectScript(html, prefix+"/livereload.js")
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(html))
}

func queryProps(r *http.Request) map[string]any {
	q := r.URL.Query()
	if len(q) == 0 {
		return nil
	}
	props := make(map[string]any, len(q))
	for k := range q {
		props[k] = q.Get(k)
	}
	return props
}

func injectScript(html, src string) string {
	tag := `<script type="module" src="` + src + `"></script>`
	if i := strings.LastIndex(html, "</body>"); i >= 0 {
		return html[:i] + tag + html[i:]
	}
	return html + tag
}

func serveJS(w http.ResponseWriter, source string) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write([]byte(source))
}

func (s *Server) handleBootstrap(w http.ResponseWriter, _ *http.Request) {
	serveJS(w, s.handler.Defaults().Bootstrap)
}

func (s *Server) handleLiveReloadScript(w http.ResponseWriter, _ *http.Request) {
	serveJS(w, livereload.Script)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "healthy", "modules": len(s.handler.Keys())})
}

type manifestEntry struct {
	Key    string `json:"key"`
	Path   string `json:"path"`
	Static bool   `json:"static,omitempty"`
}

func (s *Server) handleManifest(w http.ResponseWriter, _ *http.Request) {
	m := s.handler.Manifest()
	out := make([]manifestEntry, 0, len(m))
	for _, key := range s.handler.Keys() {
		entry, ok := m[key]
		if !ok {
			continue
		}
		out = append(out, manifestEntry{Key: key, Path: entry.Path, Static: entry.HTML != ""})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	n := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			s.errs.WriteErrorResponse(w, r, errors.ValidationError("limit must be a positive integer").
				WithContext("limit", raw).
				Build())
			return
		}
		n = v
	}
	recs, err := s.history.Recent(r.Context(), n)
	if err != nil {
		s.errs.WriteErrorResponse(w, r, err)
		return
	}
	if recs == nil {
		recs = []history.Record{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("Request",
			slog.String("method", r.Method),
			logfields.Path(r.URL.Path),
			logfields.Status(ww.Status()),
			logfields.Duration(time.Since(start)))
	})
}
