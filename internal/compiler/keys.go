package compiler

import (
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// OutputExt is the extension of every compiled script module.
const OutputExt = ".js"

var scriptExtPattern = regexp.MustCompile(`\.(jsx|mjs|tsx|ts)$`)

var scriptExts = map[string]struct{}{
	".js": {}, ".jsx": {}, ".mjs": {}, ".ts": {}, ".tsx": {},
}

// IsScript reports whether p is a JavaScript-family source file.
func IsScript(p string) bool {
	_, ok := scriptExts[strings.ToLower(path.Ext(filepath.ToSlash(p)))]
	return ok
}

// NormalizeExt replaces a trailing .ts, .tsx, .jsx or .mjs with .js.
func NormalizeExt(p string) string {
	return scriptExtPattern.ReplaceAllString(p, OutputExt)
}

// CleanKey derives the module key for p: base is stripped, then a leading /src segment, the
// script extension is normalised and the result is a rooted forward-slash path.
//
//	CleanKey("/project/src/pages/about.tsx", "/project") == "/pages/about.js"
func CleanKey(p, base string) string {
	key := filepath.ToSlash(p)
	if base != "" {
		b := strings.TrimSuffix(filepath.ToSlash(base), "/")
		if key == b {
			key = "/"
		} else if strings.HasPrefix(key, b+"/") {
			key = key[len(b):]
		}
	}
	if key == "/src" {
		key = "/"
	} else if strings.HasPrefix(key, "/src/") {
		key = key[len("/src"):]
	}
	if !strings.HasPrefix(key, "/") {
		key = "/" + key
	}
	return NormalizeExt(path.Clean(key))
}
