package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"git.home.luguber.info/inful/tails/internal/plugin"
)

// CSS wraps a stylesheet in a module that injects it into the document head.
func CSS() plugin.Plugin {
	return plugin.Plugin{
		Name:          "css",
		Test:          ext(`css`),
		AcceptsReload: true,
		Transform: func(_ context.Context, src plugin.Source, opts plugin.Options) (string, error) {
			var b strings.Builder
			fmt.Fprintf(&b, "const css = %s;\n", jsString(src.Content))
			b.WriteString("if (typeof document !== \"undefined\") {\n")
			fmt.Fprintf(&b, "  const id = %s;\n", jsString(assetURL(src.Path, opts)))
			b.WriteString("  let style = document.querySelector(`style[data-href=\"${id}\"]`);\n")
			b.WriteString("  if (!style) {\n")
			b.WriteString("    style = document.createElement(\"style\");\n")
			b.WriteString("    style.setAttribute(\"data-href\", id);\n")
			b.WriteString("    document.head.appendChild(style);\n")
			b.WriteString("  }\n")
			b.WriteString("  style.textContent = css;\n")
			b.WriteString("}\n")
			b.WriteString("export default css;\n")
			return b.String(), nil
		},
		Resolve: appendJS,
	}
}

// JSON exposes a JSON document as the module's default export.
func JSON() plugin.Plugin {
	return plugin.Plugin{
		Name: "json",
		Test: ext(`json`),
		Transform: func(_ context.Context, src plugin.Source, _ plugin.Options) (string, error) {
			if !json.Valid([]byte(src.Content)) {
				return "", fmt.Errorf("%s: invalid JSON", src.Path)
			}
			return "export default " + strings.TrimSpace(src.Content) + ";\n", nil
		},
		Resolve: appendJS,
	}
}

// WASM copies a WebAssembly binary to the build directory and exports an instantiate helper.
func WASM() plugin.Plugin {
	return plugin.Plugin{
		Name:   "wasm",
		Test:   ext(`wasm`),
		Binary: true,
		Transform: func(_ context.Context, src plugin.Source, opts plugin.Options) (string, error) {
			url, err := copyAsset(src.Path, opts)
			if err != nil {
				return "", err
			}
			var b strings.Builder
			fmt.Fprintf(&b, "export const url = %s;\n", jsString(url))
			b.WriteString("export default async function instantiate(imports = {}) {\n")
			b.WriteString("  const { instance } = await WebAssembly.instantiateStreaming(fetch(url), imports);\n")
			b.WriteString("  return instance.exports;\n")
			b.WriteString("}\n")
			return b.String(), nil
		},
		Resolve: appendJS,
	}
}

// Asset copies images and fonts to the build directory and exports their URL.
func Asset() plugin.Plugin {
	return plugin.Plugin{
		Name:   "asset",
		Test:   ext(`png|jpe?g|gif|svg|webp|avif|ico|woff2?|ttf|otf`),
		Binary: true,
		Transform: func(_ context.Context, src plugin.Source, opts plugin.Options) (string, error) {
			url, err := copyAsset(src.Path, opts)
			if err != nil {
				return "", err
			}
			return "export default " + jsString(url) + ";\n", nil
		},
		Resolve: appendJS,
	}
}
