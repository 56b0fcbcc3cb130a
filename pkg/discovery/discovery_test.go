package discovery

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuya-takeyama/incr-copy/pkg/marker"
)

var (
	cutoff = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	older  = cutoff.Add(-time.Hour)
	newer  = cutoff.Add(time.Hour)
)

// writeFile creates root/rel with the given mtime, creating parents.
func writeFile(t *testing.T, root, rel string, mtime time.Time) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(rel), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func relPaths(files []FileInfo) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, filepath.ToSlash(f.RelPath))
	}
	return out
}

func TestDiscoverNoCutoffReturnsEverything(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.epub", older)
	writeFile(t, root, "sub/b.epub", newer)
	writeFile(t, root, "sub/deeper/c.epub", time.Unix(0, 0))

	files, err := Discover(root, marker.Marker{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.epub", "sub/b.epub", "sub/deeper/c.epub"}, relPaths(files))
}

func TestDiscoverFiltersByCutoff(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "old.epub", older)
	writeFile(t, root, "new.epub", newer)
	writeFile(t, root, "exact.epub", cutoff)

	files, err := Discover(root, marker.New(cutoff))
	require.NoError(t, err)
	require.Len(t, files, 1)

	f := files[0]
	assert.Equal(t, "new.epub", f.Name)
	assert.Equal(t, "new.epub", f.RelPath)
	assert.Equal(t, filepath.Join(root, "new.epub"), f.Path)
	assert.Equal(t, int64(len("new.epub")), f.Size)
	assert.True(t, f.ModTime.After(cutoff))
}

func TestDiscoverDescendsIntoOldDirectories(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "stale/fresh.epub", newer)
	writeFile(t, root, "stale/nested/fresh2.epub", newer)
	writeFile(t, root, "stale/nested/old.epub", older)

	// directory mtimes predate the cutoff
	for _, dir := range []string{"stale/nested", "stale"} {
		path := filepath.Join(root, dir)
		require.NoError(t, os.Chtimes(path, older, older))
	}

	files, err := Discover(root, marker.New(cutoff))
	require.NoError(t, err)
	assert.Equal(t, []string{"stale/fresh.epub", "stale/nested/fresh2.epub"}, relPaths(files))
}

func TestDiscoverNeverReturnsDirectories(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty", "nested"), 0o755))
	require.NoError(t, os.Chtimes(filepath.Join(root, "empty"), newer, newer))
	writeFile(t, root, "file.epub", newer)

	for _, m := range []marker.Marker{{}, marker.New(cutoff)} {
		files, err := Discover(root, m)
		require.NoError(t, err)
		assert.Equal(t, []string{"file.epub"}, relPaths(files))
	}
}

func TestDiscoverEmptyDirectory(t *testing.T) {
	files, err := Discover(t.TempDir(), marker.New(cutoff))
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestDiscoverMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "does-not-exist")

	files, err := Discover(root, marker.Marker{})
	require.Error(t, err)
	assert.Nil(t, files)
	assert.ErrorIs(t, err, ErrFetchEntry)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDiscoverAbortsOnUnreadableDirectory(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced")
	}

	root := t.TempDir()
	writeFile(t, root, "a/ok.epub", newer)
	writeFile(t, root, "b/locked/hidden.epub", newer)

	locked := filepath.Join(root, "b", "locked")
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { os.Chmod(locked, 0o755) })

	files, err := Discover(root, marker.Marker{})
	require.Error(t, err)
	assert.Nil(t, files, "no partial results")
	assert.ErrorIs(t, err, ErrFetchEntry)

	var derr *Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, locked, derr.Path)
}

func TestDiscoverSymlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}

	root := t.TempDir()
	outside := t.TempDir()
	writeFile(t, outside, "linked-dir/inside.epub", newer)
	writeFile(t, outside, "target.epub", newer)
	writeFile(t, root, "real.epub", newer)

	require.NoError(t, os.Symlink(filepath.Join(outside, "linked-dir"), filepath.Join(root, "dirlink")))
	require.NoError(t, os.Symlink(filepath.Join(outside, "target.epub"), filepath.Join(root, "filelink.epub")))
	require.NoError(t, os.Symlink(filepath.Join(outside, "gone.epub"), filepath.Join(root, "dangling.epub")))

	log := &recordingLogger{}
	files, err := New(root, marker.Marker{}, WithLogger(log)).Discover()
	require.NoError(t, err)
	assert.Equal(t, []string{"filelink.epub", "real.epub"}, relPaths(files))
	assert.Equal(t, []string{"could not resolve symlink"}, log.warnings)
}

func TestDiscoverWithFilter(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "book.epub", newer)
	writeFile(t, root, "notes.txt", newer)
	writeFile(t, root, "tmp/partial.epub", newer)
	writeFile(t, root, "authors/x/book2.epub", newer)

	filter, err := NewFilter([]string{"**/*.epub"}, []string{"tmp/**"})
	require.NoError(t, err)

	files, err := New(root, marker.Marker{}, WithFilter(filter)).Discover()
	require.NoError(t, err)
	assert.Equal(t, []string{"authors/x/book2.epub", "book.epub"}, relPaths(files))
}

func TestDiscoverOrderIsComponentWise(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", newer)
	writeFile(t, root, "a/z.txt", newer)
	writeFile(t, root, "B.txt", newer)

	files, err := Discover(root, marker.Marker{})
	require.NoError(t, err)
	assert.Equal(t, []string{"B.txt", "a/z.txt", "a.txt"}, relPaths(files))
}

type recordingLogger struct {
	warnings []string
}

func (r *recordingLogger) Debug(msg string, args ...any) {}
func (r *recordingLogger) Info(msg string, args ...any)  {}
func (r *recordingLogger) Warn(msg string, args ...any) {
	r.warnings = append(r.warnings, msg)
}
func (r *recordingLogger) Error(msg string, args ...any) {}
