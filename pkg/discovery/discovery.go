// Package discovery walks a directory tree and collects the regular files
// modified after a marker's cutoff.
package discovery

import (
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/yuya-takeyama/incr-copy/pkg/logger"
	"github.com/yuya-takeyama/incr-copy/pkg/marker"
)

// FileInfo represents a discovered file
type FileInfo struct {
	Path    string // Root-joined path
	RelPath string // Relative path from the search root
	Name    string // Final path component
	Size    int64
	ModTime time.Time
	Mode    os.FileMode
}

// Less orders by path component.
func (f FileInfo) Less(other FileInfo) bool {
	return ComparePaths(f.Path, other.Path) < 0
}

type Option func(*Discoverer)

func WithLogger(log logger.Logger) Option {
	return func(d *Discoverer) {
		d.logger = log
	}
}

// WithFilter restricts results to files matching f. Directories are never
// filtered.
func WithFilter(f *Filter) Option {
	return func(d *Discoverer) {
		d.filter = f
	}
}

// Discoverer finds files newer than a marker's cutoff
type Discoverer struct {
	fs     billy.Filesystem
	marker marker.Marker
	filter *Filter
	logger logger.Logger
}

// New creates a discoverer over the OS directory tree at root
func New(root string, m marker.Marker, opts ...Option) *Discoverer {
	return NewFS(osfs.New(root), m, opts...)
}

// NewFS creates a discoverer over the whole of fs
func NewFS(fs billy.Filesystem, m marker.Marker, opts ...Option) *Discoverer {
	d := &Discoverer{
		fs:     fs,
		marker: m,
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Discover is a shorthand for New(root, m).Discover().
func Discover(root string, m marker.Marker) ([]FileInfo, error) {
	return New(root, m).Discover()
}

// Discover walks the tree and returns the accepted files sorted by path.
// Any traversal failure aborts the walk; no partial result is returned.
func (d *Discoverer) Discover() ([]FileInfo, error) {
	var files []FileInfo

	err := util.Walk(d.fs, ".", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return &Error{Path: d.fullPath(path), Err: err}
		}

		if info.IsDir() {
			return nil
		}

		file, ok := d.accept(path, info)
		if ok {
			files = append(files, file)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	SortFileInfos(files)
	return files, nil
}

// accept decides a single non-directory entry.
func (d *Discoverer) accept(path string, info os.FileInfo) (FileInfo, bool) {
	relPath := filepath.Clean(path)
	full := d.fullPath(relPath)

	// a link counts as the file it points to, judged by its own mtime
	content := info
	if info.Mode()&os.ModeSymlink != 0 {
		target, err := d.fs.Stat(relPath)
		if err != nil {
			d.logger.Warn("could not resolve symlink", "path", full, "error", err)
			return FileInfo{}, false
		}
		content = target
	}
	if !content.Mode().IsRegular() {
		return FileInfo{}, false
	}

	if d.filter != nil && !d.filter.Match(relPath) {
		return FileInfo{}, false
	}

	modTime := info.ModTime()
	if d.marker.HasCutoff() {
		if modTime.IsZero() {
			d.logger.Warn("could not get modified", "path", full)
			return FileInfo{}, false
		}
		if !d.marker.Accepts(modTime) {
			return FileInfo{}, false
		}
	}

	return FileInfo{
		Path:    full,
		RelPath: relPath,
		Name:    filepath.Base(relPath),
		Size:    content.Size(),
		ModTime: modTime,
		Mode:    content.Mode(),
	}, true
}

func (d *Discoverer) fullPath(rel string) string {
	return filepath.Join(d.fs.Root(), rel)
}
