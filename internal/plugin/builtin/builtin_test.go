package builtin

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/tails/internal/plugin"
)

type fakeRemote struct {
	mu   sync.Mutex
	urls []string
}

func (f *fakeRemote) Ensure(_ context.Context, url string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, url)
	return "/_remote/" + strings.TrimPrefix(url, "https://") + ".js", nil
}

func newPipeline(t *testing.T, remote Resolver) *plugin.Pipeline {
	t.Helper()
	p, err := NewPipeline(remote)
	require.NoError(t, err)
	return p
}

func TestDefaultsOrder(t *testing.T) {
	p := newPipeline(t, &fakeRemote{})
	require.Equal(t, []string{"importmap", "nonjs-imports", "remote", "css", "json", "wasm", "asset", "markdown"}, p.Names())

	require.Equal(t, []string{"importmap", "nonjs-imports", "css", "json", "wasm", "asset", "markdown"}, newPipeline(t, nil).Names())
}

func TestResolveImportChain(t *testing.T) {
	remote := &fakeRemote{}
	p := newPipeline(t, remote)
	opts := plugin.Options{ImportMap: map[string]string{
		"react":   "https://esm.sh/react@17.0.1",
		"lodash/": "https://esm.sh/lodash-es/",
	}}

	src := strings.Join([]string{
		`import React from "react";`,
		`import debounce from "lodash/debounce";`,
		`import util from "./util.tsx";`,
		`import "./styles.css";`,
		`import data from "../data.json";`,
		`import logo from "./logo.png";`,
		`import post from "./post.md";`,
		`import mod from "https://cdn.example.com/mod.ts";`,
		`import rel from "./already.js";`,
	}, "\n")

	out, err := p.ResolveImports(context.Background(), src, opts)
	require.NoError(t, err)
	require.Equal(t, strings.Join([]string{
		`import React from "/_remote/esm.sh/react@17.0.1.js";`,
		`import debounce from "/_remote/esm.sh/lodash-es/debounce.js";`,
		`import util from "./util.js";`,
		`import "./styles.css.js";`,
		`import data from "../data.json.js";`,
		`import logo from "./logo.png.js";`,
		`import post from "./post.md.js";`,
		`import mod from "/_remote/cdn.example.com/mod.ts.js";`,
		`import rel from "./already.js";`,
	}, "\n"), out)
	require.ElementsMatch(t, []string{
		"https://esm.sh/react@17.0.1",
		"https://esm.sh/lodash-es/debounce",
		"https://cdn.example.com/mod.ts",
	}, remote.urls)
}

func TestUnmappedBareSpecifierIsUnchanged(t *testing.T) {
	p := newPipeline(t, nil)
	out, err := p.ResolveImports(context.Background(), `import x from "left-pad";`, plugin.Options{})
	require.NoError(t, err)
	require.Equal(t, `import x from "left-pad";`, out)
}

func TestCSSTransform(t *testing.T) {
	p := newPipeline(t, nil)
	key, out, err := p.Transform(context.Background(), "/project/src/styles/app.css", "body { color: red; }", plugin.Options{RootDir: "/project"})
	require.NoError(t, err)
	require.Equal(t, "/project/src/styles/app.css.js", key)
	require.Contains(t, out, `const css = "body { color: red; }";`)
	require.Contains(t, out, `const id = "/styles/app.css";`)
	require.Contains(t, out, "export default css;")
	require.True(t, p.ReloadAware("/project/src/styles/app.css"))
}

func TestJSONTransform(t *testing.T) {
	p := newPipeline(t, nil)
	key, out, err := p.Transform(context.Background(), "/p/src/data.json", "{\"a\": 1}\n", plugin.Options{})
	require.NoError(t, err)
	require.Equal(t, "/p/src/data.json.js", key)
	require.Equal(t, "export default {\"a\": 1};\n", out)

	_, _, err = p.Transform(context.Background(), "/p/src/bad.json", "{", plugin.Options{})
	require.Error(t, err)
}

func TestBinaryAssetsAreCopied(t *testing.T) {
	root := t.TempDir()
	build := filepath.Join(root, ".tails")
	src := filepath.Join(root, "src", "img", "logo.png")
	require.NoError(t, os.MkdirAll(filepath.Dir(src), 0o750))
	require.NoError(t, os.WriteFile(src, []byte{0x89, 'P', 'N', 'G'}, 0o600))

	p := newPipeline(t, nil)
	require.True(t, p.IsBinary(src))
	key, out, err := p.Transform(context.Background(), src, "", plugin.Options{RootDir: root, BuildDir: build})
	require.NoError(t, err)
	require.Equal(t, src+".js", key)
	require.Equal(t, "export default \"/img/logo.png\";\n", out)

	data, err := os.ReadFile(filepath.Join(build, "img", "logo.png"))
	require.NoError(t, err)
	require.Equal(t, []byte{0x89, 'P', 'N', 'G'}, data)
}

func TestMissingBinaryAssetFails(t *testing.T) {
	root := t.TempDir()
	build := filepath.Join(root, ".tails")
	src := filepath.Join(root, "src", "img", "gone.png")

	p := newPipeline(t, nil)
	_, _, err := p.Transform(context.Background(), src, "", plugin.Options{RootDir: root, BuildDir: build})
	require.Error(t, err)
	require.NoFileExists(t, filepath.Join(build, "img", "gone.png"))
}

func TestWASMTransform(t *testing.T) {
	root := t.TempDir()
	build := filepath.Join(root, ".tails")
	src := filepath.Join(root, "src", "add.wasm")
	require.NoError(t, os.MkdirAll(filepath.Dir(src), 0o750))
	require.NoError(t, os.WriteFile(src, []byte{0, 'a', 's', 'm'}, 0o600))

	p := newPipeline(t, nil)
	key, out, err := p.Transform(context.Background(), src, "", plugin.Options{RootDir: root, BuildDir: build})
	require.NoError(t, err)
	require.Equal(t, src+".js", key)
	require.Contains(t, out, `export const url = "/add.wasm";`)
	require.Contains(t, out, "WebAssembly.instantiateStreaming")
	require.FileExists(t, filepath.Join(build, "add.wasm"))
}

func TestMarkdownTransform(t *testing.T) {
	p := newPipeline(t, nil)
	content := "---\ntitle: Hello\n---\n# Hello *world*\n"
	key, out, err := p.Transform(context.Background(), "/p/src/posts/hello.md", content, plugin.Options{})
	require.NoError(t, err)
	require.Equal(t, "/p/src/posts/hello.md.js", key)
	require.Contains(t, out, `export const frontmatter = {"title":"Hello"};`)
	require.Contains(t, out, `<h1 id=\"hello-world\">Hello <em>world</em></h1>`)
	require.Contains(t, out, "export default html;")

	_, _, err = p.Transform(context.Background(), "/p/src/broken.md", "---\ntitle: x\n", plugin.Options{})
	require.Error(t, err)
}
