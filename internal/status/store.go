// Package status keeps the last observed status line of every file in the
// watched directory and decides whether a new observation is a change.
package status

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/spf13/afero"

	"github.com/Iron-Ham/herobot/internal/errors"
	"github.com/Iron-Ham/herobot/internal/logging"
)

// TimeLayout renders LastObservedAt in summaries.
const TimeLayout = "2006-01-02 15:04:05"

// MaxTextBytes bounds how much of a file is read for its first line, so the
// notification fits in one Telegram message (4096 characters).
const MaxTextBytes = 3584

// FileStatus is the last known state of one watched file.
type FileStatus struct {
	Path        string
	DisplayName string
	// LastObservedAt is the file's modification time truncated to the second;
	// zero when the filesystem did not report one.
	LastObservedAt time.Time
	// Text is the first line of the file with trailing whitespace removed.
	Text string
}

// Message is the notification text for a change of this file.
func (f FileStatus) Message() string {
	return fmt.Sprintf("%s: %s", f.DisplayName, f.Text)
}

// SummaryLine renders the status for a summary.
func (f FileStatus) SummaryLine() string {
	at := "unknown date"
	if !f.LastObservedAt.IsZero() {
		at = f.LastObservedAt.Format(TimeLayout)
	}
	return fmt.Sprintf("%s at %s", f.Message(), at)
}

// Store maps paths to their FileStatus. Observe is the only place that
// decides whether a file changed. Safe for concurrent use.
type Store struct {
	fs     afero.Fs
	logger *logging.Logger

	mu      sync.RWMutex
	entries map[string]*FileStatus
}

// NewStore creates an empty Store reading files through fs.
func NewStore(fs afero.Fs, logger *logging.Logger) *Store {
	return &Store{
		fs:      fs,
		logger:  logger.WithComponent("status"),
		entries: make(map[string]*FileStatus),
	}
}

// Observe reads path and records its status. changed is true on the first
// observation of a path and whenever the text differs from the stored one.
// On a read failure the stored entry is left untouched and the error is
// returned with changed == false.
func (s *Store) Observe(path string) (FileStatus, bool, error) {
	text, modTime, err := s.read(path)
	if err != nil {
		return FileStatus{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[path]
	if !ok {
		entry = &FileStatus{
			Path:           path,
			DisplayName:    filepath.Base(path),
			LastObservedAt: modTime,
			Text:           text,
		}
		s.entries[path] = entry
		return *entry, true, nil
	}

	entry.LastObservedAt = modTime
	changed := entry.Text != text
	entry.Text = text
	return *entry, changed, nil
}

// read returns the trimmed first line of path and its modification time.
// The file is read outside the store lock.
func (s *Store) read(path string) (string, time.Time, error) {
	info, err := s.fs.Stat(path)
	if err != nil {
		return "", time.Time{}, errors.NewWatchError(path, "stat", err)
	}
	if !info.Mode().IsRegular() {
		return "", time.Time{}, errors.NewWatchError(path, "observe", errors.ErrNotRegularFile)
	}

	f, err := s.fs.Open(path)
	if err != nil {
		return "", time.Time{}, errors.NewWatchError(path, "open", err)
	}
	defer f.Close()

	line, err := bufio.NewReader(io.LimitReader(f, MaxTextBytes)).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", time.Time{}, errors.NewWatchError(path, "read first line", err)
	}
	// The limit may cut a multi-byte rune in half.
	line = strings.ToValidUTF8(line, "")

	var modTime time.Time
	if mt := info.ModTime(); !mt.IsZero() {
		modTime = mt.Truncate(time.Second)
	}
	return strings.TrimRightFunc(line, unicode.IsSpace), modTime, nil
}

// Get returns the stored status for path.
func (s *Store) Get(path string) (FileStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[path]
	if !ok {
		return FileStatus{}, false
	}
	return *entry, true
}

// Len returns the number of tracked paths.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Scan observes every regular file directly inside dir and returns how many
// were recorded. Unreadable files are logged and skipped.
func (s *Store) Scan(dir string) (int, error) {
	infos, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		return 0, errors.NewWatchError(dir, "list directory", err)
	}

	n := 0
	for _, info := range infos {
		if !s.isRegular(dir, info) {
			continue
		}
		path := filepath.Join(dir, info.Name())
		if _, _, err := s.Observe(path); err != nil {
			s.logger.Warn("initial scan skipped file", "path", path, "error", err.Error())
			continue
		}
		n++
	}
	return n, nil
}

// Listed returns copies of the entries for regular files currently listed in
// dir, in directory-listing order. Entries for files no longer in the
// listing are omitted.
func (s *Store) Listed(dir string) ([]FileStatus, error) {
	infos, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		return nil, errors.NewWatchError(dir, "list directory", err)
	}

	files := make([]string, 0, len(infos))
	for _, info := range infos {
		if s.isRegular(dir, info) {
			files = append(files, filepath.Join(dir, info.Name()))
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]FileStatus, 0, len(files))
	for _, path := range files {
		if entry, ok := s.entries[path]; ok {
			out = append(out, *entry)
		}
	}
	return out, nil
}

// isRegular reports whether a listed entry is a regular file. Directory
// listings do not follow symlinks, so a link is resolved the way Observe
// resolves it.
func (s *Store) isRegular(dir string, info os.FileInfo) bool {
	if info.Mode()&os.ModeSymlink == 0 {
		return info.Mode().IsRegular()
	}
	target, err := s.fs.Stat(filepath.Join(dir, info.Name()))
	return err == nil && target.Mode().IsRegular()
}

// Summary renders one line per listed entry, joined by newlines.
func (s *Store) Summary(dir string) (string, error) {
	entries, err := s.Listed(dir)
	if err != nil {
		return "", err
	}

	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		lines = append(lines, entry.SummaryLine())
	}
	return strings.Join(lines, "\n"), nil
}
