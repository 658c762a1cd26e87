// Package plugin provides the ordered transform pipeline that every source file and every
// import literal passes through before it is written to the build directory.
package plugin

import (
	"context"
	"fmt"
	"regexp"
)

// Source is one module handed to a transform hook.
type Source struct {
	// Path is the module key (the full source path before any rename).
	Path string
	// Content is the current text. Binary plugins receive an empty string and read Path themselves.
	Content string
}

// Output is a compiled module as seen by post-transform hooks.
type Output struct {
	Source string
	Map    string
}

// Options carries the build settings every hook may consult.
type Options struct {
	RootDir   string
	SrcDir    string
	BuildDir  string
	Mode      string
	Building  bool
	Reload    bool
	ImportMap map[string]string
}

type (
	// TransformFunc rewrites module content.
	TransformFunc func(ctx context.Context, src Source, opts Options) (string, error)
	// ResolveFunc rewrites a module key or an import literal. Returning "" means unchanged.
	ResolveFunc func(ctx context.Context, path string, opts Options) (string, error)
	// PreTransformFunc runs before transpilation and may rename the module.
	PreTransformFunc func(ctx context.Context, path, content string) (string, string, error)
	// PostTransformFunc runs on transpiled output and may rename the module.
	PostTransformFunc func(ctx context.Context, path string, out Output) (string, Output, error)
)

// Plugin is a named set of optional hooks. A nil hook is an absent capability; dispatch
// checks presence, never type identity.
type Plugin struct {
	Name string
	// Test selects the module keys and import literals this plugin applies to.
	Test *regexp.Regexp
	// AcceptsReload marks modules handled by this plugin as safe to hot-reload.
	AcceptsReload bool
	// Binary marks handled files as non-text; their content is never decoded.
	Binary bool

	Transform     TransformFunc
	Resolve       ResolveFunc
	PreTransform  PreTransformFunc
	PostTransform PostTransformFunc
}

// Validate checks the plugin can be registered.
func (p Plugin) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("plugin name is required")
	}
	if p.Test == nil {
		return fmt.Errorf("plugin %s: test pattern is required", p.Name)
	}
	if p.Transform == nil && p.Resolve == nil && p.PreTransform == nil && p.PostTransform == nil {
		return fmt.Errorf("plugin %s: at least one hook is required", p.Name)
	}
	return nil
}

// Matches reports whether path is selected by the plugin's test.
func (p Plugin) Matches(path string) bool {
	return p.Test.MatchString(path)
}

func (p Plugin) String() string {
	return p.Name
}
