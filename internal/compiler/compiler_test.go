package compiler

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/tails/internal/foundation/errors"
)

func TestCleanKey(t *testing.T) {
	tests := []struct {
		name string
		path string
		base string
		want string
	}{
		{"page under src", "/project/src/pages/about.tsx", "/project", "/pages/about.js"},
		{"base is src dir", "/project/src/pages/about.tsx", "/project/src", "/pages/about.js"},
		{"plain js", "/project/src/lib/util.js", "/project", "/lib/util.js"},
		{"mjs", "/project/src/lib/util.mjs", "/project", "/lib/util.js"},
		{"non script keeps extension", "/project/src/styles/app.css", "/project", "/styles/app.css"},
		{"plugin renamed key", "/project/src/styles/app.css.js", "/project", "/styles/app.css.js"},
		{"sibling prefix not stripped", "/project2/src/a.ts", "/project", "/project2/src/a.js"},
		{"already a key", "/pages/index.tsx", "/project", "/pages/index.js"},
		{"ts inside name", "/project/src/tsconfig/types.ts", "/project", "/tsconfig/types.js"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanKey(tt.path, tt.base); got != tt.want {
				t.Errorf("CleanKey(%q, %q) = %q, want %q", tt.path, tt.base, got, tt.want)
			}
		})
	}
}

func TestSkip(t *testing.T) {
	for name, want := range map[string]bool{
		".hidden.ts":      true,
		"types.d.ts":      true,
		"app.test.tsx":    true,
		"app.spec.js":     true,
		"flow.e2e.mjs":    true,
		"app.tsx":         false,
		"contest.ts":      false,
		"styles.css":      false,
		"index.d.tsx.bak": false,
	} {
		if got := Skip(name); got != want {
			t.Errorf("Skip(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestWalk(t *testing.T) {
	src := t.TempDir()
	files := []string{
		"pages/index.tsx",
		"pages/_app.tsx",
		"pages/index.test.tsx",
		"components/button.jsx",
		"styles/app.css",
		"types.d.ts",
		"README.txt",
		".cache/junk.js",
		"lib/.secret.ts",
	}
	for _, f := range files {
		p := filepath.Join(src, f)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}

	got, err := Walk(src, func(p string) bool { return strings.HasSuffix(p, ".css") })
	require.NoError(t, err)

	rel := make([]string, 0, len(got))
	for _, p := range got {
		r, err := filepath.Rel(src, p)
		require.NoError(t, err)
		rel = append(rel, filepath.ToSlash(r))
	}
	require.Equal(t, []string{
		"components/button.jsx",
		"pages/_app.tsx",
		"pages/index.tsx",
		"styles/app.css",
	}, rel)
}

func TestDecodeText(t *testing.T) {
	got, err := DecodeText(append([]byte{0xEF, 0xBB, 0xBF}, "export const a = 1;"...))
	require.NoError(t, err)
	require.Equal(t, "export const a = 1;", got)

	utf16le := []byte{0xFF, 0xFE, 'h', 0, 'i', 0}
	got, err = DecodeText(utf16le)
	require.NoError(t, err)
	require.Equal(t, "hi", got)

	_, err = DecodeText([]byte{'a', 0xff, 'b'})
	require.Error(t, err)
	require.True(t, errors.HasCategory(err, errors.CategoryModule))
}

func TestTranspileTypeScript(t *testing.T) {
	src := `import { greet } from "./greet.js";
const name: string = "tails";
export const message = greet(name);
`
	out, err := Transpile("/project/src/index.ts", src, TranspileOptions{Target: "es2018", SourceMap: true})
	require.NoError(t, err)
	require.Contains(t, out.Source, `import { greet } from "./greet.js";`)
	require.Contains(t, out.Source, `const name = "tails";`)
	require.NotContains(t, out.Source, ": string")
	require.Contains(t, out.Map, `"version": 3`)
	require.Contains(t, out.Map, "index.ts")
}

func TestTranspileJSX(t *testing.T) {
	src := `import React from "react";
export default function Page() {
  return <h1 className="title">Hello</h1>;
}
`
	out, err := Transpile("/project/src/pages/index.tsx", src, TranspileOptions{Target: "es2015"})
	require.NoError(t, err)
	require.Contains(t, out.Source, "React.createElement")
	require.Contains(t, out.Source, `from "react"`)
	require.Empty(t, out.Map)
}

func TestTranspileSyntaxError(t *testing.T) {
	_, err := Transpile("/project/src/broken.ts", "export const = ;", TranspileOptions{})
	require.Error(t, err)

	ce, ok := errors.AsClassified(err)
	require.True(t, ok)
	require.Equal(t, errors.CategoryModule, ce.Category())
	p, _ := ce.Context().GetString("path")
	require.Equal(t, "/project/src/broken.ts", p)
	line, ok := ce.Context().Get("line")
	require.True(t, ok)
	require.Equal(t, 1, line)
}

func TestTargetForMode(t *testing.T) {
	require.Equal(t, "es2015", TargetForMode("production"))
	require.Equal(t, "es2018", TargetForMode("development"))
}
