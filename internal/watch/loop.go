package watch

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/tails/internal/logfields"
	"git.home.luguber.info/inful/tails/internal/metrics"
)

// HandlerFunc recompiles one changed path.
type HandlerFunc func(ctx context.Context, path string) error

// Loop consumes events from a Source and calls the handler for accepted modify events.
type Loop struct {
	handle   HandlerFunc
	gate     *Gate
	logger   *slog.Logger
	recorder metrics.Recorder
	exists   func(path string) bool
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithDebounce sets the debounce window and clock.
func WithDebounce(window time.Duration, clock clockwork.Clock) LoopOption {
	return func(l *Loop) { l.gate = NewGate(window, clock) }
}

func WithLogger(logger *slog.Logger) LoopOption {
	return func(l *Loop) { l.logger = logger }
}

func WithRecorder(r metrics.Recorder) LoopOption {
	return func(l *Loop) { l.recorder = r }
}

// NewLoop creates a loop with a 500ms debounce window.
func NewLoop(handle HandlerFunc, opts ...LoopOption) *Loop {
	l := &Loop{
		handle:   handle,
		gate:     NewGate(500*time.Millisecond, nil),
		logger:   slog.Default(),
		recorder: metrics.NoopRecorder{},
		exists: func(path string) bool {
			_, err := os.Stat(path)
			return err == nil
		},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Gate exposes the loop's debounce gate.
func (l *Loop) Gate() *Gate { return l.gate }

// Run processes events until ctx is done or the source's event channel closes. Handler
// errors are logged and never stop the loop.
func (l *Loop) Run(ctx context.Context, src Source) error {
	errs := src.Errors()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-src.Events():
			if !ok {
				return nil
			}
			l.process(ctx, ev)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			l.logger.Warn("Watcher error", logfields.Error(err))
		}
	}
}

func (l *Loop) process(ctx context.Context, ev Event) {
	if ev.Kind == KindAccess {
		l.recorder.IncEventsDropped("access")
		return
	}
	if l.gate.Held(ev.Path) {
		l.recorder.IncEventsDropped("debounce")
		return
	}

	l.logger.Debug("Watch event", logfields.Event(string(ev.Kind)), logfields.Path(ev.Path))
	if ev.Kind != KindModify {
		l.recorder.IncEventsDropped("kind")
		return
	}
	if !l.gate.Acquire(ev.Path) {
		l.recorder.IncEventsDropped("debounce")
		return
	}
	defer l.gate.Release(ev.Path)

	if !l.exists(ev.Path) {
		l.logger.Debug("Skipping deleted file", logfields.Path(ev.Path))
		l.recorder.IncEventsDropped("deleted")
		return
	}

	start := time.Now()
	if err := l.handle(ctx, ev.Path); err != nil {
		l.logger.Error("Recompile failed", logfields.Path(ev.Path), logfields.Error(err))
		return
	}
	l.logger.Debug("Processing completed", logfields.Path(ev.Path), logfields.Duration(time.Since(start)))
}
