package config

import (
	"crypto/sha256"
	"encoding/hex"
	"maps"
	"slices"
	"strings"
)

// Snapshot computes a stable hash of the fields that affect compiled output. Slices and maps
// are order-insensitive. Logging, metrics and server settings are left out.
func (c *Config) Snapshot() string {
	if c == nil {
		return ""
	}
	h := sha256.New()
	w := func(parts ...string) { h.Write([]byte(strings.Join(parts, "="))); h.Write([]byte{0}) }

	w("mode", string(c.Mode))
	w("src_dir", c.SrcDir)
	w("build_dir", c.BuildDir)

	routes := slices.Clone(c.StaticRoutes)
	slices.Sort(routes)
	w("static_routes", strings.Join(routes, ","))

	for _, spec := range slices.Sorted(maps.Keys(c.ImportMap)) {
		w("import_map."+spec, c.ImportMap[spec])
	}

	w("runtime.react", c.Runtime.React)
	w("runtime.react_dom", c.Runtime.ReactDOM)
	w("runtime.react_dom_server", c.Runtime.ReactDOMServer)
	return hex.EncodeToString(h.Sum(nil))
}
