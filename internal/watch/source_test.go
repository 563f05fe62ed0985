package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/herobot/internal/errors"
	"github.com/Iron-Ham/herobot/internal/logging"
)

const testDebounce = 100 * time.Millisecond

func startSource(t *testing.T, dir string, opts Options) *Source {
	t.Helper()
	src, err := New(dir, opts, logging.NopLogger())
	require.NoError(t, err)
	src.Start()
	t.Cleanup(func() { _ = src.Close() })
	return src
}

func next(t *testing.T, src *Source, wait time.Duration) (string, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	return src.Next(ctx)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestSource_DebouncesBurst(t *testing.T) {
	dir := t.TempDir()
	src := startSource(t, dir, Options{Debounce: testDebounce})
	path := filepath.Join(dir, "build.txt")

	for i := 0; i < 5; i++ {
		writeFile(t, path, "running")
		time.Sleep(10 * time.Millisecond)
	}

	got, err := next(t, src, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	_, err = next(t, src, 3*testDebounce)
	assert.ErrorIs(t, err, context.DeadlineExceeded, "burst must collapse into one report")
}

func TestSource_SeparatePathsReportedIndependently(t *testing.T) {
	dir := t.TempDir()
	src := startSource(t, dir, Options{Debounce: testDebounce})
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")

	writeFile(t, a, "one")
	writeFile(t, b, "two")

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		got, err := next(t, src, 2*time.Second)
		require.NoError(t, err)
		seen[got] = true
	}
	assert.Equal(t, map[string]bool{a: true, b: true}, seen)
}

func TestSource_IgnorePatterns(t *testing.T) {
	dir := t.TempDir()
	src := startSource(t, dir, Options{Ignore: []string{"*.swp", ".#*"}})

	writeFile(t, filepath.Join(dir, "status.txt.swp"), "junk")
	writeFile(t, filepath.Join(dir, ".#status.txt"), "junk")
	writeFile(t, filepath.Join(dir, "status.txt"), "ok")

	got, err := next(t, src, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "status.txt"), got)
}

func TestSource_IgnoresRemoval(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	writeFile(t, path, "ok")

	src := startSource(t, dir, Options{})
	require.NoError(t, os.Remove(path))

	_, err := next(t, src, 300*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSource_WatchesNewSubdirectories(t *testing.T) {
	dir := t.TempDir()
	src := startSource(t, dir, Options{})

	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.Mkdir(sub, 0o755))

	// Let the loop register the new directory before writing into it.
	require.Eventually(t, func() bool {
		for _, w := range src.watcher.WatchList() {
			if w == sub {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	path := filepath.Join(sub, "deep.txt")
	writeFile(t, path, "deep")

	got, err := next(t, src, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, path, got)
}

func TestSource_Close(t *testing.T) {
	src, err := New(t.TempDir(), Options{}, logging.NopLogger())
	require.NoError(t, err)
	src.Start()

	require.NoError(t, src.Close())
	require.NoError(t, src.Close())

	_, err = next(t, src, time.Second)
	assert.ErrorIs(t, err, errors.ErrSourceClosed)
}

func TestSource_CloseBeforeStart(t *testing.T) {
	src, err := New(t.TempDir(), Options{}, logging.NopLogger())
	require.NoError(t, err)
	require.NoError(t, src.Close())
	src.Start()

	_, err = next(t, src, time.Second)
	assert.ErrorIs(t, err, errors.ErrSourceClosed)
}

func TestNew_Errors(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing"), Options{}, logging.NopLogger())
	var watchErr *errors.WatchError
	assert.ErrorAs(t, err, &watchErr)

	_, err = New(t.TempDir(), Options{Ignore: []string{"[oops"}}, logging.NopLogger())
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}
