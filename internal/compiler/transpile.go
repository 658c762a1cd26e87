package compiler

import (
	"fmt"
	"path"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"git.home.luguber.info/inful/tails/internal/foundation/errors"
	"git.home.luguber.info/inful/tails/internal/plugin"
)

// TranspileOptions controls syntax lowering.
type TranspileOptions struct {
	// Target is an ECMAScript version such as "es2015", "es2018" or "esnext".
	Target string
	// SourceMap requests an external source map.
	SourceMap bool
}

// TargetForMode mirrors the lowering level used per mode: production output runs on older
// browsers than the development server assumes.
func TargetForMode(mode string) string {
	if mode == "production" {
		return "es2015"
	}
	return "es2018"
}

var targets = map[string]api.Target{
	"es2015": api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"esnext": api.ESNext,
}

func loaderFor(p string) api.Loader {
	switch strings.ToLower(path.Ext(p)) {
	case ".ts", ".mts":
		return api.LoaderTS
	case ".tsx":
		return api.LoaderTSX
	case ".jsx":
		return api.LoaderJSX
	default:
		return api.LoaderJS
	}
}

// Transpile lowers one script module to ES module JavaScript. Type annotations are stripped
// without type checking and JSX is compiled to React.createElement calls.
func Transpile(p, content string, opts TranspileOptions) (plugin.Output, error) {
	target, ok := targets[strings.ToLower(opts.Target)]
	if !ok {
		target = api.ES2018
	}
	sourcemap := api.SourceMapNone
	if opts.SourceMap {
		sourcemap = api.SourceMapExternal
	}

	result := api.Transform(content, api.TransformOptions{
		Loader:     loaderFor(p),
		Sourcefile: p,
		Sourcemap:  sourcemap,
		Target:     target,
		Format:     api.FormatESModule,
		Charset:    api.CharsetUTF8,
	})
	if len(result.Errors) > 0 {
		return plugin.Output{}, diagnosticError(p, result.Errors)
	}
	return plugin.Output{Source: string(result.Code), Map: string(result.Map)}, nil
}

func diagnosticError(p string, msgs []api.Message) error {
	first := msgs[0]
	b := errors.ModuleError("transpile failed").
		WithContext("path", p).
		WithContext("diagnostics", len(msgs)).
		WithCause(fmt.Errorf("%s", first.Text))
	if loc := first.Location; loc != nil {
		b = b.WithContext("line", loc.Line).WithContext("column", loc.Column)
	}
	return b.Build()
}
