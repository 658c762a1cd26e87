package watch

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/tails/internal/logfields"
)

// FSNotifySource watches a directory tree. Directories created later are added as they
// appear; hidden files and editor temporaries are filtered out.
type FSNotifySource struct {
	w         *fsnotify.Watcher
	events    chan Event
	errors    chan error
	logger    *slog.Logger
	done      chan struct{}
	closeOnce sync.Once
}

// NewFSNotifySource starts watching root recursively.
func NewFSNotifySource(root string, logger *slog.Logger) (*FSNotifySource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	s := &FSNotifySource{
		w:      w,
		events: make(chan Event),
		errors: make(chan error, 1),
		logger: logger,
		done:   make(chan struct{}),
	}
	if err := s.addDirsRecursive(root); err != nil {
		_ = w.Close()
		return nil, err
	}
	go s.run()
	return s, nil
}

func (s *FSNotifySource) Events() <-chan Event { return s.events }
func (s *FSNotifySource) Errors() <-chan error { return s.errors }

// Close stops the watcher and closes the event channel.
func (s *FSNotifySource) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.w.Close()
	})
	return err
}

func (s *FSNotifySource) run() {
	defer close(s.events)
	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-s.w.Events:
			if !ok {
				return
			}
			if shouldIgnoreEvent(ev.Name) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					_ = s.addDirsRecursive(ev.Name)
				}
			}
			select {
			case s.events <- Event{Kind: kindOf(ev.Op), Path: ev.Name}:
			case <-s.done:
				return
			}
		case err, ok := <-s.w.Errors:
			if !ok {
				return
			}
			select {
			case s.errors <- err:
			default:
				s.logger.Warn("Watcher error dropped", logfields.Error(err))
			}
		}
	}
}

func kindOf(op fsnotify.Op) Kind {
	switch {
	case op.Has(fsnotify.Write):
		return KindModify
	case op.Has(fsnotify.Create):
		return KindCreate
	case op.Has(fsnotify.Remove):
		return KindRemove
	case op.Has(fsnotify.Rename):
		return KindRename
	default:
		return KindAccess
	}
}

func (s *FSNotifySource) addDirsRecursive(root string) error {
	if _, err := os.Stat(root); err != nil {
		return fmt.Errorf("watch %s: %w", root, err)
	}
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := s.w.Add(path); err != nil {
			s.logger.Warn("Watch add failed", logfields.Path(path), logfields.Error(err))
		}
		return nil
	})
}

// shouldIgnoreEvent returns true for filesystem events that should not trigger recompiles.
func shouldIgnoreEvent(path string) bool {
	base := filepath.Base(path)

	// Hidden files, including .#lock files
	if strings.HasPrefix(base, ".") {
		return true
	}

	// Editor temp/swap files
	if strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#") {
		return true
	}

	return base == "Thumbs.db" || base == "4913"
}
