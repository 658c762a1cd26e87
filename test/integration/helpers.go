// Package integration exercises complete build, restore and serve cycles of a project.
package integration

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/tails/internal/config"
)

// projectFiles is a small application: wrappers, two pages, a shared library, a stylesheet,
// JSON data and a markdown page.
var projectFiles = map[string]string{
	"src/pages/_app.tsx":      "export default function App(props: { Page: any; pageProps: any }) { return props.Page(props.pageProps); }\n",
	"src/pages/_document.tsx": "export default function Document(): string { return \"<html></html>\"; }\n",
	"src/pages/index.tsx":     "import { greet } from \"../lib/util.ts\";\nimport data from \"../data/site.json\";\nexport default function Index(): string { return greet(data.name); }\n",
	"src/pages/about.tsx":     "import \"../styles/app.css\";\nexport default function About(): string { return \"about\"; }\n",
	"src/lib/util.ts":         "export function greet(name: string): string { return \"hello \" + name; }\n",
	"src/lib/util.test.ts":    "throw new Error(\"never compiled\");\n",
	"src/styles/app.css":      "body { margin: 0; }\n",
	"src/data/site.json":      "{\"name\": \"tails\"}\n",
	"src/docs/intro.md":       "---\ntitle: Intro\n---\n# Intro\n\nHello.\n",
}

// setupTestProject writes projectFiles and a configuration into a fresh git repository and
// returns the project root and the commit hash.
func setupTestProject(t *testing.T, settings map[string]any) (string, string) {
	t.Helper()

	root := t.TempDir()
	for rel, content := range projectFiles {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	}

	data, err := yaml.Marshal(settings)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, "tails.yaml"), data, 0o600))

	repo, err := git.PlainInit(root, false)
	require.NoError(t, err, "failed to initialize git repo")
	w, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, w.AddGlob("."))
	hash, err := w.Commit("Initial test commit", &git.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err, "failed to create initial commit")

	return root, hash.String()
}

// loadConfig loads the project configuration with mode applied.
func loadConfig(t *testing.T, root string, mode config.Mode) *config.Config {
	t.Helper()
	cfg, err := config.Load(filepath.Join(root, "tails.yaml"))
	require.NoError(t, err, "failed to load test config")
	cfg.Mode = mode
	require.NoError(t, cfg.Validate())
	return cfg
}

// outputHashes returns sha256 digests of every compiled module keyed by build-relative path.
// Source maps are skipped since they embed absolute source paths.
func outputHashes(t *testing.T, buildDir string) map[string]string {
	t.Helper()
	out := make(map[string]string)
	err := filepath.WalkDir(buildDir, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(p) != ".js" {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(buildDir, p)
		if err != nil {
			return err
		}
		sum := sha256.Sum256(data)
		out[filepath.ToSlash(rel)] = hex.EncodeToString(sum[:])
		return nil
	})
	require.NoError(t, err)
	return out
}
