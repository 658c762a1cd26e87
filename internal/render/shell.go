// Package render provides the page renderer used when no server-side renderer is plugged
// in: an HTML shell that mounts the page in the browser.
package render

import (
	"bytes"
	"context"
	"encoding/json"
	"html/template"

	"git.home.luguber.info/inful/tails/internal/foundation/errors"
	"git.home.luguber.info/inful/tails/internal/module"
)

// BootstrapPath is where the dev server serves the hydration script.
const BootstrapPath = "/_tails/bootstrap.js"

var shellTemplate = template.Must(template.New("shell").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<link rel="modulepreload" href="{{.Page}}">
</head>
<body>
<div id="app"></div>
<script id="ssr-data" type="application/json">{{.Props}}</script>
<script type="module">
import React from "{{.React}}";
import ReactDOM from "{{.ReactDOM}}";
import { bootstrap } from "{{.Bootstrap}}";
bootstrap((el, root) => ReactDOM.hydrate(el, root), React);
</script>
</body>
</html>
`))

// Shell renders an empty mount point plus the scripts that render the page client side.
type Shell struct {
	Title string
}

type shellData struct {
	Title     string
	Page      string
	Props     template.JS
	React     string
	ReactDOM  string
	Bootstrap string
}

// Render implements module.Renderer.
func (s Shell) Render(_ context.Context, req module.RenderRequest) (string, error) {
	props := req.Props
	if props == nil {
		props = map[string]any{}
	}
	data, err := json.Marshal(props)
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryRuntime, "failed to encode page props").
			WithContext("module", req.Key).
			Build()
	}

	title := s.Title
	if title == "" {
		title = "tails"
	}
	var buf bytes.Buffer
	err = shellTemplate.Execute(&buf, shellData{
		Title:     title,
		Page:      req.Key,
		Props:     template.JS(data),
		React:     req.Runtime.React,
		ReactDOM:  req.Runtime.ReactDOM,
		Bootstrap: BootstrapPath,
	})
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryRuntime, "failed to render page shell").
			WithContext("module", req.Key).
			Build()
	}
	return buf.String(), nil
}
