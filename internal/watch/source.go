// Package watch turns filesystem notifications under a directory into a
// debounced stream of changed paths.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"

	"github.com/Iron-Ham/herobot/internal/errors"
	"github.com/Iron-Ham/herobot/internal/logging"
)

// Options configures a Source.
type Options struct {
	// Debounce is the quiet period a path must see before it is reported.
	// Zero reports every qualifying event immediately.
	Debounce time.Duration
	// Ignore holds glob patterns matched against base names.
	Ignore []string
}

// Source watches a directory tree and reports paths that were written to or
// created. Bursts of events on one path collapse into a single report once
// the path has been quiet for the debounce window.
type Source struct {
	root     string
	watcher  *fsnotify.Watcher
	debounce time.Duration
	ignore   []glob.Glob
	logger   *logging.Logger

	out    chan string
	stopCh chan struct{}
	done   chan struct{}

	mu      sync.Mutex
	started bool
	closed  bool
}

// New creates a Source for root and registers root and every directory
// below it. Call Start to begin delivering events.
func New(root string, opts Options, logger *logging.Logger) (*Source, error) {
	patterns := make([]glob.Glob, 0, len(opts.Ignore))
	for _, p := range opts.Ignore {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrInvalidInput, "ignore pattern %q: %v", p, err)
		}
		patterns = append(patterns, g)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.NewWatchError(root, "create watcher", err)
	}

	s := &Source{
		root:     root,
		watcher:  watcher,
		debounce: opts.Debounce,
		ignore:   patterns,
		logger:   logger.WithComponent("watch"),
		out:      make(chan string),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}

	if err := watcher.Add(root); err != nil {
		_ = watcher.Close()
		return nil, errors.NewWatchError(root, "watch directory", err)
	}
	s.watchDirRecursive(root)
	return s, nil
}

// watchDirRecursive adds all subdirectories of root to the watcher.
func (s *Source) watchDirRecursive(root string) {
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors, continue walking
		}
		if info.IsDir() && path != root {
			if err := s.watcher.Add(path); err != nil {
				s.logger.Warn("failed to watch directory", "path", path, "error", err)
			}
		}
		return nil
	})
}

// Start begins processing filesystem events.
func (s *Source) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.closed {
		return
	}
	s.started = true
	go s.loop()
}

// Close stops the Source. Pending Next calls return ErrSourceClosed.
func (s *Source) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	started := s.started
	s.mu.Unlock()

	close(s.stopCh)
	err := s.watcher.Close()
	if started {
		<-s.done
	} else {
		close(s.out)
	}
	return err
}

// Next blocks until a changed path is available. It returns ErrSourceClosed
// once the Source is closed, or ctx.Err() when ctx ends first.
func (s *Source) Next(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case path, ok := <-s.out:
		if !ok {
			return "", errors.ErrSourceClosed
		}
		return path, nil
	}
}

func (s *Source) loop() {
	defer close(s.done)
	defer close(s.out)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	// path -> time it becomes reportable
	pending := make(map[string]time.Time)
	var ready []string

	for {
		var out chan<- string
		var head string
		if len(ready) > 0 {
			out = s.out
			head = ready[0]
		}

		select {
		case <-s.stopCh:
			return

		case out <- head:
			ready = ready[1:]

		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if !s.accept(event) {
				continue
			}
			if s.debounce <= 0 {
				ready = enqueue(ready, event.Name)
				continue
			}
			pending[event.Name] = time.Now().Add(s.debounce)
			rearm(timer, pending)

		case now := <-timer.C:
			var due []string
			for path, at := range pending {
				if !at.After(now) {
					due = append(due, path)
					delete(pending, path)
				}
			}
			sort.Strings(due)
			for _, path := range due {
				ready = enqueue(ready, path)
			}
			rearm(timer, pending)

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("watcher error", "error", err)
		}
	}
}

// accept reports whether event should be forwarded. New directories are
// registered and never forwarded.
func (s *Source) accept(event fsnotify.Event) bool {
	// Only care about write/create operations
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return false
	}

	base := filepath.Base(event.Name)
	for _, g := range s.ignore {
		if g.Match(base) {
			s.logger.Debug("ignored event", "path", event.Name)
			return false
		}
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := s.watcher.Add(event.Name); err != nil {
				s.logger.Warn("failed to watch directory", "path", event.Name, "error", err)
			}
			s.watchDirRecursive(event.Name)
			return false
		}
	}
	return true
}

// enqueue appends path unless it is already waiting to be delivered.
func enqueue(ready []string, path string) []string {
	for _, p := range ready {
		if p == path {
			return ready
		}
	}
	return append(ready, path)
}

// rearm points timer at the earliest pending deadline.
func rearm(timer *time.Timer, pending map[string]time.Time) {
	timer.Stop()
	if len(pending) == 0 {
		return
	}
	var earliest time.Time
	for _, at := range pending {
		if earliest.IsZero() || at.Before(earliest) {
			earliest = at
		}
	}
	timer.Reset(time.Until(earliest))
}
