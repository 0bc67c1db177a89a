// internal/app/system/filestage/filestage.go
package filestage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrTooLarge is returned when an upload exceeds the configured limit.
var ErrTooLarge = errors.New("file exceeds upload limit")

// Area is a directory holding one subdirectory per draft. Files are only
// ever read back whole, at submission time.
type Area struct {
	root string
	max  int64
	log  *zap.Logger
}

// New creates (if needed) the staging root. maxBytes <= 0 means no limit.
func New(root string, maxBytes int64, log *zap.Logger) (*Area, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("staging path is empty")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create staging root: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Area{root: root, max: maxBytes, log: log}, nil
}

// Root returns the staging directory.
func (a *Area) Root() string { return a.root }

// MaxBytes returns the per-file limit; 0 means none.
func (a *Area) MaxBytes() int64 { return a.max }

// File is a staged upload. It satisfies project.FileSource.
type File struct {
	Path string
	Size int64
}

// Open returns the staged bytes.
func (f *File) Open() (io.ReadCloser, error) { return os.Open(f.Path) }

// Save copies r into the draft's directory under a random name and returns
// the staged file. Nothing is left behind on failure.
func (a *Area) Save(draftID string, r io.Reader) (*File, error) {
	dir, err := a.draftDir(draftID)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create draft dir: %w", err)
	}

	path := filepath.Join(dir, uuid.NewString()+".tif")
	out, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("create staged file: %w", err)
	}

	src := r
	if a.max > 0 {
		src = io.LimitReader(r, a.max+1)
	}
	n, err := io.Copy(out, src)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil && a.max > 0 && n > a.max {
		err = ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, err
	}
	return &File{Path: path, Size: n}, nil
}

// Discard removes one staged file. Missing files are not an error.
func (a *Area) Discard(f *File) {
	if f == nil {
		return
	}
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		a.log.Warn("discard staged file", zap.String("path", f.Path), zap.Error(err))
	}
}

// RemoveDraft deletes everything staged for draftID.
func (a *Area) RemoveDraft(draftID string) error {
	dir, err := a.draftDir(draftID)
	if err != nil {
		return err
	}
	return os.RemoveAll(dir)
}

func (a *Area) draftDir(draftID string) (string, error) {
	if _, err := uuid.Parse(draftID); err != nil {
		return "", fmt.Errorf("draft id %q: %w", draftID, err)
	}
	return filepath.Join(a.root, draftID), nil
}
