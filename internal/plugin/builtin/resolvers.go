package builtin

import (
	"context"
	"regexp"
	"strings"

	"git.home.luguber.info/inful/tails/internal/compiler"
	"git.home.luguber.info/inful/tails/internal/plugin"
)

// ImportMap resolves bare specifiers through Options.ImportMap. Entries ending in "/" map
// every specifier under that prefix.
func ImportMap() plugin.Plugin {
	return plugin.Plugin{
		Name: "importmap",
		Test: regexp.MustCompile(`^[@\w][^:]*$`),
		Resolve: func(_ context.Context, spec string, opts plugin.Options) (string, error) {
			if target, ok := opts.ImportMap[spec]; ok {
				return target, nil
			}
			best := ""
			for prefix := range opts.ImportMap {
				if strings.HasSuffix(prefix, "/") && strings.HasPrefix(spec, prefix) && len(prefix) > len(best) {
					best = prefix
				}
			}
			if best == "" {
				return "", nil
			}
			return opts.ImportMap[best] + spec[len(best):], nil
		},
	}
}

// NonJS rewrites .ts, .tsx, .jsx and .mjs imports to the compiled .js extension.
func NonJS() plugin.Plugin {
	return plugin.Plugin{
		Name: "nonjs-imports",
		Test: ext(`tsx?|jsx|mjs`),
		Resolve: func(_ context.Context, spec string, _ plugin.Options) (string, error) {
			if isRemote(spec) {
				return "", nil
			}
			return compiler.NormalizeExt(spec), nil
		},
	}
}

// Remote rewrites http(s) imports to their content-addressed copy under the build directory.
func Remote(r Resolver) plugin.Plugin {
	return plugin.Plugin{
		Name: "remote",
		Test: regexp.MustCompile(`^https?://`),
		Resolve: func(ctx context.Context, url string, _ plugin.Options) (string, error) {
			return r.Ensure(ctx, url)
		},
	}
}
