// Package browser ships the client-side scripts served next to compiled modules.
package browser

import _ "embed"

//go:embed bootstrap.js
var bootstrap string

// Bootstrap returns the hydration entry script.
func Bootstrap() string {
	return bootstrap
}
