package devserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/tails/internal/config"
	"git.home.luguber.info/inful/tails/internal/handler"
	"git.home.luguber.info/inful/tails/internal/history"
	"git.home.luguber.info/inful/tails/internal/livereload"
	"git.home.luguber.info/inful/tails/internal/module"
	"git.home.luguber.info/inful/tails/internal/plugin/builtin"
)

var sources = map[string]string{
	"pages/_app.tsx":      "export default function App(p: any) { return p; }\n",
	"pages/_document.tsx": "export default function Document() { return null; }\n",
	"pages/index.tsx":     "export default function Index(): string { return \"index\"; }\n",
	"pages/blog/post.tsx": "export default function Post(): string { return \"post\"; }\n",
	"styles/app.css":      "body { margin: 0; }\n",
}

func writeSrc(t *testing.T, root, rel, content string) string {
	t.Helper()
	p := filepath.Join(root, "src", filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func newServer(t *testing.T, opts ...Option) (*Server, *handler.Handler, string) {
	t.Helper()
	root := t.TempDir()
	for rel, content := range sources {
		writeSrc(t, root, rel, content)
	}
	cfg := config.Default(root)
	p, err := builtin.NewPipeline(nil)
	require.NoError(t, err)

	renderer := module.RendererFunc(func(_ context.Context, req module.RenderRequest) (string, error) {
		return "<html><body><p>" + req.Key + "</p></body></html>", nil
	})
	h := handler.New(cfg, p, handler.WithRenderer(renderer))
	require.NoError(t, h.Build(context.Background(), nil))
	return New(h, opts...), h, root
}

func get(t *testing.T, s http.Handler, target string) (*http.Response, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	resp := rec.Result()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	return resp, string(body)
}

func TestRouteFor(t *testing.T) {
	cases := map[string]string{
		"/pages/index.js":      "/",
		"/pages/about.js":      "/about",
		"/pages/blog/post.js":  "/blog/post",
		"/pages/blog/index.js": "/blog",
	}
	for key, want := range cases {
		require.Equal(t, want, RouteFor(key), key)
	}
}

func TestServesRenderedPages(t *testing.T) {
	s, _, _ := newServer(t)

	resp, body := get(t, s, "/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	require.Contains(t, body, "<p>/pages/index.js</p>")
	require.NotContains(t, body, "livereload.js")

	_, body = get(t, s, "/blog/post")
	require.Contains(t, body, "<p>/pages/blog/post.js</p>")
}

func TestInjectsLiveReloadWithHub(t *testing.T) {
	s, _, _ := newServer(t, WithHub(livereload.NewHub()))

	_, body := get(t, s, "/")
	require.Contains(t, body, `<script type="module" src="/_tails/livereload.js"></script></body>`)

	resp, script := get(t, s, "/_tails/livereload.js")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, livereload.Script, script)
}

func TestServesModules(t *testing.T) {
	s, h, _ := newServer(t)

	resp, body := get(t, s, "/pages/index.js")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/javascript; charset=utf-8", resp.Header.Get("Content-Type"))
	a, ok := h.Registry().Get("/pages/index.js")
	require.True(t, ok)
	require.Equal(t, a.Source, body)

	resp, body = get(t, s, "/styles/app.css.js")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "margin")

	resp, _ = get(t, s, "/pages/index.js.map")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = get(t, s, "/missing.js")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBootstrapAndHealth(t *testing.T) {
	s, h, _ := newServer(t)

	_, body := get(t, s, "/_tails/bootstrap.js")
	require.Equal(t, h.Defaults().Bootstrap, body)

	resp, body := get(t, s, "/_tails/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var health map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &health))
	require.Equal(t, "healthy", health["status"])
	require.EqualValues(t, len(h.Keys()), health["modules"])
}

func TestManifestEndpoint(t *testing.T) {
	s, h, _ := newServer(t)

	_, body := get(t, s, "/_tails/manifest")
	var entries []manifestEntry
	require.NoError(t, json.Unmarshal([]byte(body), &entries))
	require.Len(t, entries, len(h.Keys()))
	require.Equal(t, h.Keys()[0], entries[0].Key)
}

func TestReloadModuleAddsRoutes(t *testing.T) {
	s, h, root := newServer(t)

	resp, _ := get(t, s, "/contact")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	ctx := context.Background()
	p := writeSrc(t, root, "pages/contact.tsx", "export default function Contact(): string { return \"c\"; }\n")
	key, err := h.Recompile(ctx, p, nil)
	require.NoError(t, err)
	require.NoError(t, s.ReloadModule(ctx, key))

	_, body := get(t, s, "/contact")
	require.Contains(t, body, "<p>/pages/contact.js</p>")

	require.Error(t, s.ReloadModule(ctx, "/pages/nope.js"))
}

func TestHistoryEndpoint(t *testing.T) {
	store, err := history.NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Append(context.Background(), history.Record{
		BuildID:   "b1",
		Kind:      history.KindBuild,
		Outcome:   "success",
		Timestamp: time.Now(),
	}))

	s, _, _ := newServer(t, WithHistory(store))
	resp, body := get(t, s, "/_tails/history?limit=5")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var recs []history.Record
	require.NoError(t, json.Unmarshal([]byte(body), &recs))
	require.Len(t, recs, 1)
	require.Equal(t, "b1", recs[0].BuildID)

	resp, _ = get(t, s, "/_tails/history?limit=zero")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMetricsMounted(t *testing.T) {
	called := false
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})
	s, _, _ := newServer(t, WithMetrics(metrics))
	resp, _ := get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, called)
}
