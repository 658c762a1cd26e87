// Package builtin holds the plugins every tails project gets: import maps, extension
// normalisation, remote imports and the non-script module wrappers.
package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"git.home.luguber.info/inful/tails/internal/compiler"
	"git.home.luguber.info/inful/tails/internal/plugin"
)

// Resolver turns a remote URL into a build-relative key, fetching it as a side effect.
type Resolver interface {
	Ensure(ctx context.Context, url string) (string, error)
}

// Defaults returns the builtin plugins in registration order. remote may be nil, in which
// case http(s) imports are left untouched.
func Defaults(remote Resolver) []plugin.Plugin {
	plugins := []plugin.Plugin{ImportMap(), NonJS()}
	if remote != nil {
		plugins = append(plugins, Remote(remote))
	}
	return append(plugins, CSS(), JSON(), WASM(), Asset(), Markdown())
}

// NewPipeline builds a pipeline from the builtins followed by extra.
func NewPipeline(remote Resolver, extra ...plugin.Plugin) (*plugin.Pipeline, error) {
	return plugin.NewPipeline(append(Defaults(remote), extra...)...)
}

// appendJS renames x.ext to x.ext.js, leaving remote literals alone.
func appendJS(_ context.Context, p string, _ plugin.Options) (string, error) {
	if isRemote(p) || strings.HasSuffix(p, compiler.OutputExt) {
		return "", nil
	}
	return p + compiler.OutputExt, nil
}

func isRemote(p string) bool {
	return strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://")
}

// jsString renders s as a JavaScript string literal. HTML characters are kept as is.
func jsString(s string) string {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return `""`
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// assetURL is the URL a copied asset is served at.
func assetURL(src string, opts plugin.Options) string {
	return compiler.CleanKey(src, opts.RootDir)
}

// copyAsset copies the source file into the build directory under its module key.
func copyAsset(src string, opts plugin.Options) (string, error) {
	key := assetURL(src, opts)
	dst := filepath.Join(opts.BuildDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return "", err
	}

	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return "", fmt.Errorf("copy %s: %w", src, err)
	}
	return key, out.Close()
}

func ext(pattern string) *regexp.Regexp {
	return regexp.MustCompile(`\.(?:` + pattern + `)$`)
}
