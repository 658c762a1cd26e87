package module

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"git.home.luguber.info/inful/tails/internal/artifact"
	"git.home.luguber.info/inful/tails/internal/compiler"
	"git.home.luguber.info/inful/tails/internal/foundation/errors"
	"git.home.luguber.info/inful/tails/internal/plugin"
)

// State is a module's position in its compile lifecycle.
type State int

const (
	StateUnloaded State = iota
	StateContentLoaded
	StateTranspiled
	StateWritten
)

func (s State) String() string {
	switch s {
	case StateContentLoaded:
		return "content-loaded"
	case StateTranspiled:
		return "transpiled"
	case StateWritten:
		return "written"
	default:
		return "unloaded"
	}
}

var (
	// ErrNoWritePath is the panic value when Write is called before Transpile.
	ErrNoWritePath = stderrors.New("module has no write path")
	// ErrNoRenderer is returned by Render when the environment has no renderer.
	ErrNoRenderer = stderrors.New("no renderer configured")
	// ErrNotLoaded is returned by Transpile before Load.
	ErrNotLoaded = stderrors.New("module content not loaded")
)

// Module is one source file and its compiled form.
type Module struct {
	// Key is the cleaned source path, e.g. /pages/about.js.
	Key      string
	FullPath string
	Content  string
	Source   string
	Map      string
	// WritePath is the build-relative output path, set by Transpile.
	WritePath string
	HTML      string
	IsStatic  bool
	IsPlugin  bool

	env      *Env
	state    State
	imported *artifact.Artifact
	rendered bool
	mu       sync.Mutex
}

// Options seed a module, typically from the manifest.
type Options struct {
	// Key overrides the key derived from FullPath.
	Key       string
	FullPath  string
	IsStatic  bool
	IsPlugin  bool
	Source    string
	HTML      string
	WritePath string
}

// New creates a module. A module seeded with Source and WritePath starts out Written.
func New(env *Env, opts Options) *Module {
	m := &Module{
		Key:       compiler.CleanKey(opts.FullPath, env.Config.RootDir),
		FullPath:  opts.FullPath,
		Source:    opts.Source,
		HTML:      opts.HTML,
		WritePath: opts.WritePath,
		IsStatic:  opts.IsStatic && !opts.IsPlugin,
		IsPlugin:  opts.IsPlugin,
		env:       env,
	}
	if opts.Key != "" {
		m.Key = opts.Key
	}
	if m.WritePath != "" && m.Source != "" {
		m.state = StateWritten
		m.rendered = m.HTML != ""
	}
	return m
}

func (m *Module) State() State { return m.state }

// IsPage reports whether the module lives under a pages directory.
func (m *Module) IsPage() bool {
	return strings.Contains(m.Key, "/pages")
}

// Renderable reports whether the page produces markup of its own. The _app and _document
// wrappers and plugin modules never do.
func (m *Module) Renderable() bool {
	if m.IsPlugin {
		return false
	}
	return m.IsPage() && !strings.Contains(m.Key, "_app") && !strings.Contains(m.Key, "_document")
}

// IsServerModule reports whether the module only runs on the server.
func (m *Module) IsServerModule() bool {
	return strings.Contains(m.Key, "/server/")
}

// HTMLPath is WritePath with its extension replaced by .html.
func (m *Module) HTMLPath() string {
	return strings.TrimSuffix(m.WritePath, path.Ext(m.WritePath)) + ".html"
}

// OutputPath is the absolute location of the compiled module.
func (m *Module) OutputPath() string {
	return filepath.Join(m.env.Config.BuildDir, filepath.FromSlash(m.WritePath))
}

// Load reads and decodes the source file. Binary plugin modules are not read.
func (m *Module) Load(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.env.Pipeline.IsBinary(m.FullPath) {
		m.Content = ""
		m.state = StateContentLoaded
		return nil
	}

	data, err := os.ReadFile(m.FullPath)
	if err != nil {
		return errors.WrapError(err, errors.CategoryModule, "failed to read module").
			WithContext("path", m.FullPath).
			Build()
	}
	content, err := compiler.DecodeText(data)
	if err != nil {
		return errors.WrapError(err, errors.CategoryModule, "failed to decode module").
			WithContext("path", m.FullPath).
			Build()
	}
	m.Content = content
	m.state = StateContentLoaded
	return nil
}

// Transpile compiles Content. Plugin modules go through the plugin transform chain only;
// scripts additionally get pre-transform hooks, syntax lowering and post-transform hooks.
func (m *Module) Transpile(ctx context.Context) error {
	if m.state < StateContentLoaded {
		return errors.WrapError(ErrNotLoaded, errors.CategoryInternal, "transpile before load").
			WithContext("path", m.FullPath).
			Build()
	}
	p := m.env.Pipeline
	opts := m.env.PluginOptions()

	if m.IsPlugin {
		key, source, err := p.Transform(ctx, m.FullPath, m.Content, opts)
		if err != nil {
			return err
		}
		m.setOutput(key, plugin.Output{Source: source})
		return nil
	}

	pre, err := p.PreTransformAll(ctx, map[string]string{m.FullPath: m.Content})
	if err != nil {
		return err
	}
	key, content := single(pre)

	key, content, err = p.Transform(ctx, key, content, opts)
	if err != nil {
		return err
	}
	out, err := compiler.Transpile(key, content, compiler.TranspileOptions{
		Target:    compiler.TargetForMode(opts.Mode),
		SourceMap: !m.IsServerModule(),
	})
	if err != nil {
		return err
	}

	post, err := p.PostTransformAll(ctx, map[string]plugin.Output{key: out})
	if err != nil {
		return err
	}
	key, out = single(post)
	m.setOutput(key, out)
	return nil
}

func (m *Module) setOutput(key string, out plugin.Output) {
	m.WritePath = compiler.CleanKey(key, m.env.Config.RootDir)
	m.Source = out.Source
	m.Map = out.Map
	if m.Map != "" && !m.IsServerModule() {
		m.Source = strings.TrimRight(m.Source, "\n") + "\n//# sourceMappingURL=" + path.Base(m.WritePath) + ".map\n"
	}
	m.state = StateTranspiled
}

// Write persists the compiled module, its cached HTML and its source map. Calling Write
// before Transpile is a programming error and panics with ErrNoWritePath.
func (m *Module) Write(ctx context.Context) error {
	if m.WritePath == "" {
		panic(fmt.Errorf("%w: %s", ErrNoWritePath, m.Key))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	out := m.OutputPath()
	if err := writeFile(out, m.Source); err != nil {
		return err
	}
	if m.HTML != "" {
		if err := writeFile(filepath.Join(m.env.Config.BuildDir, filepath.FromSlash(m.HTMLPath())), m.HTML); err != nil {
			return err
		}
	}
	if m.Map != "" && !m.IsServerModule() {
		if err := writeFile(out+".map", m.Map); err != nil {
			return err
		}
	}

	m.env.Registry.Put(m.Key, out, m.Source)
	m.imported = nil
	m.state = StateWritten
	return nil
}

// Retranspile reloads the source and runs the whole pipeline again.
func (m *Module) Retranspile(ctx context.Context) error {
	if err := m.Load(ctx); err != nil {
		return err
	}
	if err := m.Transpile(ctx); err != nil {
		return err
	}
	return m.Write(ctx)
}

// Import returns the latest written artifact of the module.
func (m *Module) Import(ctx context.Context) (artifact.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return artifact.Artifact{}, err
	}
	a, err := m.env.Registry.Load(m.Key, m.OutputPath())
	if err != nil {
		return artifact.Artifact{}, err
	}
	m.imported = &a
	return a, nil
}

// Render produces the page's markup. Static pages outside development keep the result
// on HTML so later FetchHTML calls reuse it.
func (m *Module) Render(ctx context.Context, app, doc artifact.Artifact, props map[string]any) (string, error) {
	if !m.Renderable() {
		return "", nil
	}
	if m.env.Renderer == nil {
		return "", ErrNoRenderer
	}
	if m.imported == nil {
		if _, err := m.Import(ctx); err != nil {
			return "", err
		}
	}

	html, err := m.env.Renderer.Render(ctx, RenderRequest{
		Key:       m.Key,
		App:       app,
		Document:  doc,
		Component: *m.imported,
		Props:     props,
		Runtime:   m.env.Runtime,
	})
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryRuntime, "render failed").
			WithContext("module", m.Key).
			Build()
	}
	if m.IsStatic && !m.env.Config.IsDev() {
		m.HTML = html
		m.rendered = true
	}
	return html, nil
}

// FetchHTML returns cached markup when present and renders otherwise.
func (m *Module) FetchHTML(ctx context.Context, app, doc artifact.Artifact, props map[string]any) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rendered {
		return m.HTML, nil
	}
	return m.Render(ctx, app, doc, props)
}

func single[V any](m map[string]V) (string, V) {
	for k, v := range m {
		return k, v
	}
	var zero V
	return "", zero
}
