package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/tails/internal/config"
	"git.home.luguber.info/inful/tails/internal/history"
	"git.home.luguber.info/inful/tails/internal/manifest"
)

func TestLoadConfigFallsBackToDefaults(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o750))

	cfg, err := loadConfig(&CLI{Config: filepath.Join(root, "missing.yaml"), Root: root}, config.ModeProduction)
	require.NoError(t, err)
	require.Equal(t, config.ModeProduction, cfg.Mode)
	require.Equal(t, filepath.Join(root, "src"), cfg.SrcDir)
}

func TestLoadConfigRequiresSourceDir(t *testing.T) {
	root := t.TempDir()
	_, err := loadConfig(&CLI{Config: filepath.Join(root, "missing.yaml"), Root: root}, "")
	require.Error(t, err)
}

func TestLoadConfigReadsFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "app"), 0o750))
	path := filepath.Join(root, "tails.yaml")
	require.NoError(t, os.WriteFile(path, []byte("src_dir: app\nstatic_routes: [about]\n"), 0o600))

	cfg, err := loadConfig(&CLI{Config: path}, "")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "app"), cfg.SrcDir)
	require.Equal(t, []string{"about"}, cfg.StaticRoutes)
	require.Equal(t, config.ModeDevelopment, cfg.Mode)
}

func TestWriteReport(t *testing.T) {
	m := manifest.Manifest{
		"/pages/index.js": {Path: "/b/pages/index.js", Module: "export default 1;"},
		"/pages/about.js": {Path: "/b/pages/about.js", Module: "x", HTML: "<p></p>"},
	}
	info := &manifest.BuildInfo{ID: "abc", Mode: "production", Timestamp: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), Modules: 1234, Duration: 56}
	recs := []history.Record{{Kind: history.KindRecompile, Path: "/lib/util.js", Outcome: "success", Timestamp: time.Now()}}

	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, m, info, recs))
	out := buf.String()
	require.Contains(t, out, "Build abc (production) at 2025-01-02 03:04:05")
	require.Contains(t, out, "1,234 modules in 56 ms")
	require.Contains(t, out, "/pages/about.js")
	require.Contains(t, out, "yes")
	require.Contains(t, out, "/lib/util.js")
	require.Less(t, bytes.Index(buf.Bytes(), []byte("/pages/about.js")), bytes.Index(buf.Bytes(), []byte("/pages/index.js")))
}
