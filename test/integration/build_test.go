package integration

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/tails/internal/config"
	"git.home.luguber.info/inful/tails/internal/devserver"
	"git.home.luguber.info/inful/tails/internal/handler"
	"git.home.luguber.info/inful/tails/internal/history"
	"git.home.luguber.info/inful/tails/internal/manifest"
	"git.home.luguber.info/inful/tails/internal/plugin/builtin"
	"git.home.luguber.info/inful/tails/internal/render"
)

func newHandler(t *testing.T, cfg *config.Config, opts ...handler.Option) *handler.Handler {
	t.Helper()
	p, err := builtin.NewPipeline(nil)
	require.NoError(t, err)
	return handler.New(cfg, p, append([]handler.Option{handler.WithRenderer(render.Shell{})}, opts...)...)
}

func fetch(t *testing.T, h http.Handler, target string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	return rec.Code, string(body)
}

func TestBuildRestoreAndServe(t *testing.T) {
	root, commit := setupTestProject(t, map[string]any{
		"static_routes": []string{"about"},
		"history":       map[string]any{"enabled": true},
	})
	ctx := context.Background()

	cfg := loadConfig(t, root, config.ModeProduction)
	cfg.Building = true
	store, err := history.NewSQLiteStore(cfg.History.Path)
	require.NoError(t, err)
	defer store.Close()

	built := newHandler(t, cfg, handler.WithHistory(store))
	require.NoError(t, built.Init(ctx, handler.InitOptions{Building: true}))
	require.NoError(t, built.Build(ctx, cfg.StaticRoutes))

	m, err := manifest.Load(cfg.ManifestPath())
	require.NoError(t, err)
	for _, key := range []string{"/pages/index.js", "/pages/about.js", "/lib/util.js", "/styles/app.css", "/data/site.json", "/docs/intro.md"} {
		require.Contains(t, m, key)
	}
	require.NotContains(t, m, "/lib/util.test.js")
	require.Contains(t, m["/pages/about.js"].HTML, `id="ssr-data"`)
	require.Empty(t, m["/pages/index.js"].HTML)
	require.Contains(t, m["/pages/about.js"].Module, `"../styles/app.css.js"`)
	require.Contains(t, m["/pages/index.js"].Module, `"../data/site.json.js"`)
	require.Contains(t, m["/docs/intro.md"].Module, `"title":"Intro"`)

	info, err := manifest.LoadBuildInfo(cfg.BuildInfoPath())
	require.NoError(t, err)
	require.Equal(t, commit, info.Revision)
	require.Equal(t, len(m), info.Modules)
	hash, err := m.Hash()
	require.NoError(t, err)
	require.Equal(t, hash, info.ManifestHash)

	recs, err := store.ByBuild(ctx, info.ID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "success", recs[0].Outcome)

	prod := loadConfig(t, root, config.ModeProduction)
	restored := newHandler(t, prod)
	require.NoError(t, restored.Init(ctx, handler.InitOptions{}))
	srv := devserver.New(restored)

	code, body := fetch(t, srv, "/about")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, m["/pages/about.js"].HTML, body)

	code, body = fetch(t, srv, "/pages/index.js")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, `"../lib/util.js"`)

	code, body = fetch(t, srv, "/")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, `href="/pages/index.js"`)
}

func TestBuildOutputIsPortable(t *testing.T) {
	ctx := context.Background()
	var hashes []map[string]string
	for range 2 {
		root, _ := setupTestProject(t, map[string]any{})
		cfg := loadConfig(t, root, config.ModeDevelopment)
		require.NoError(t, newHandler(t, cfg).Build(ctx, nil))
		hashes = append(hashes, outputHashes(t, cfg.BuildDir))
	}
	require.NotEmpty(t, hashes[0])
	require.Equal(t, hashes[0], hashes[1])
}
