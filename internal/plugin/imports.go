package plugin

import (
	"context"
	"regexp"
	"strings"
)

// importPattern finds double-quoted literals after from, import, import( and require(.
// Single-quoted and template literals are not matched and pass through unchanged.
var importPattern = regexp.MustCompile(`(?:\bfrom\s*|\bimport\s*\(?\s*|\brequire\s*\(\s*)"([^"\r\n]+)"`)

// ImportRef is one import found in module content.
type ImportRef struct {
	// Match is the exact matched text, keyword included.
	Match string
	// Literal is the unquoted path.
	Literal string
}

// FindImports returns the distinct import references in content, in order of first appearance.
func FindImports(content string) []ImportRef {
	var refs []ImportRef
	seen := make(map[string]struct{})
	for _, m := range importPattern.FindAllStringSubmatch(content, -1) {
		if _, ok := seen[m[0]]; ok {
			continue
		}
		seen[m[0]] = struct{}{}
		refs = append(refs, ImportRef{Match: m[0], Literal: m[1]})
	}
	return refs
}

// ResolveImports rewrites every import literal through the resolve chain. Substitution is
// keyed on the matched text and applied in one pass, so identical imports always resolve
// identically and a rewritten import is never rewritten again.
func (p *Pipeline) ResolveImports(ctx context.Context, content string, opts Options) (string, error) {
	refs := FindImports(content)
	if len(refs) == 0 {
		return content, nil
	}

	replacements := make(map[string]string, len(refs))
	for _, ref := range refs {
		resolved, err := p.ResolvePath(ctx, ref.Literal, opts)
		if err != nil {
			return "", err
		}
		if resolved != ref.Literal {
			replacements[ref.Match] = strings.Replace(ref.Match, `"`+ref.Literal+`"`, `"`+resolved+`"`, 1)
		}
	}
	if len(replacements) == 0 {
		return content, nil
	}

	return importPattern.ReplaceAllStringFunc(content, func(match string) string {
		if r, ok := replacements[match]; ok {
			return r
		}
		return match
	}), nil
}
