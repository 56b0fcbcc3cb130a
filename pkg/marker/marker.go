// Package marker persists the cutoff of the last successful run.
//
// A marker is a small JSON document:
//
//	{"cutoff_time": "2024-05-01T10:00:00Z"}
//
// or {"cutoff_time": null} when no cutoff has been recorded. The zero Marker
// has no cutoff and accepts every file.
package marker

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/yuya-takeyama/incr-copy/pkg/logger"
)

// Marker is immutable once constructed.
type Marker struct {
	CutoffTime *time.Time `json:"cutoff_time"`
}

// New returns a marker whose cutoff is t.
func New(t time.Time) Marker {
	utc := t.UTC()
	return Marker{CutoffTime: &utc}
}

// Cutoff returns the cutoff and whether one is set.
func (m Marker) Cutoff() (time.Time, bool) {
	if m.CutoffTime == nil {
		return time.Time{}, false
	}
	return *m.CutoffTime, true
}

func (m Marker) HasCutoff() bool {
	return m.CutoffTime != nil
}

// Accepts reports whether a file modified at modTime is newer than the
// cutoff. Without a cutoff everything is accepted.
func (m Marker) Accepts(modTime time.Time) bool {
	if m.CutoffTime == nil {
		return true
	}
	return modTime.After(*m.CutoffTime)
}

// Compare orders markers by cutoff. A marker without a cutoff sorts before
// any marker with one.
func (m Marker) Compare(other Marker) int {
	switch {
	case m.CutoffTime == nil && other.CutoffTime == nil:
		return 0
	case m.CutoffTime == nil:
		return -1
	case other.CutoffTime == nil:
		return 1
	case m.CutoffTime.Before(*other.CutoffTime):
		return -1
	case m.CutoffTime.After(*other.CutoffTime):
		return 1
	default:
		return 0
	}
}

func (m Marker) Equal(other Marker) bool {
	return m.Compare(other) == 0
}

func (m Marker) Before(other Marker) bool {
	return m.Compare(other) < 0
}

func (m Marker) String() string {
	if m.CutoffTime == nil {
		return "<none>"
	}
	return m.CutoffTime.Format(time.RFC3339Nano)
}

// Load reads the marker at path.
func Load(path string) (Marker, error) {
	fs, name := splitPath(path)
	m, err := LoadFS(fs, name)
	return m, withPath(err, path)
}

// LoadFS reads the marker stored as name on fs.
func LoadFS(fs billy.Filesystem, name string) (Marker, error) {
	f, err := fs.Open(name)
	if err != nil {
		return Marker{}, newError(ErrFileOpen, name, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return Marker{}, newError(ErrInvalidFormat, name, err)
	}

	// a top-level null decodes into a nil pointer and is rejected
	var decoded *Marker
	if err := json.Unmarshal(data, &decoded); err != nil {
		return Marker{}, newError(ErrInvalidFormat, name, err)
	}
	if decoded == nil {
		return Marker{}, newError(ErrInvalidFormat, name, errNullDocument)
	}
	if decoded.CutoffTime != nil {
		utc := decoded.CutoffTime.UTC()
		decoded.CutoffTime = &utc
	}

	return *decoded, nil
}

// LoadOrDefault loads the marker at path, falling back to the zero Marker
// on any failure. The failure is logged, never returned.
func LoadOrDefault(path string, log logger.Logger) Marker {
	m, err := Load(path)
	return orDefault(m, err, log)
}

func LoadOrDefaultFS(fs billy.Filesystem, name string, log logger.Logger) Marker {
	m, err := LoadFS(fs, name)
	return orDefault(m, err, log)
}

func orDefault(m Marker, err error, log logger.Logger) Marker {
	if err != nil {
		log.Warn("could not get marker from file", "error", err)
		return Marker{}
	}
	return m
}

// Save writes the marker to path, replacing any existing file.
func (m Marker) Save(path string) error {
	// osfs would create the missing directory on demand
	dir := filepath.Dir(filepath.Clean(path))
	if _, err := os.Stat(dir); err != nil {
		return newError(ErrFileCreate, path, err)
	}
	fs, name := splitPath(path)
	return withPath(m.SaveFS(fs, name), path)
}

// SaveFS writes the marker as name on fs. The parent directory must exist.
func (m Marker) SaveFS(fs billy.Filesystem, name string) error {
	data, err := json.Marshal(m)
	if err != nil {
		return newError(ErrSerialization, name, err)
	}

	if dir := filepath.Dir(name); dir != "." && dir != string(filepath.Separator) {
		if _, err := fs.Stat(dir); err != nil {
			return newError(ErrFileCreate, name, err)
		}
	}

	f, err := fs.Create(name)
	if err != nil {
		return newError(ErrFileCreate, name, err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		return newError(ErrWrite, name, err)
	}
	if err := f.Close(); err != nil {
		return newError(ErrWrite, name, err)
	}

	return nil
}

// splitPath roots an OS filesystem at the parent directory so the marker
// can be addressed by its base name.
func splitPath(path string) (billy.Filesystem, string) {
	dir, name := filepath.Split(filepath.Clean(path))
	if dir == "" {
		dir = "."
	}
	return osfs.New(dir), name
}
