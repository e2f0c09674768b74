package upload

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"facultyeval/internal/domain/registration"
)

// ErrNotFound is returned for unknown or malformed handles.
var ErrNotFound = errors.New("upload not found")

// Store keeps profile picture previews on local disk until registration
// submits or discards them. Handles are "<uuid><ext>" file names.
type Store struct {
	dir    string
	logger *zap.Logger
}

// New creates the upload directory if needed.
func New(dir string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Dir returns the directory uploads are written to.
func (s *Store) Dir() string { return s.dir }

// Save validates and stores an image.
// PRE: size is the declared byte length of r
// POST: Returns a new handle and the detected content type, or a
// *registration.ValidationError when the file is not an acceptable image
func (s *Store) Save(r io.Reader, size int64) (handle, contentType string, err error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", "", fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	contentType, err = registration.ValidateImage(head, size)
	if err != nil {
		return "", "", err
	}

	handle = uuid.NewString() + registration.ExtensionFor(contentType)
	f, err := os.OpenFile(filepath.Join(s.dir, handle), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return "", "", fmt.Errorf("create upload: %w", err)
	}
	written, err := io.Copy(f, io.MultiReader(bytes.NewReader(head), io.LimitReader(r, registration.MaxImageSize+1-int64(n))))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && written > registration.MaxImageSize {
		err = &registration.ValidationError{Step: registration.StepProfilePicture, Msg: "Image size should be less than 5MB"}
	}
	if err != nil {
		s.Release(handle)
		return "", "", err
	}
	s.logger.Debug("upload_saved", zap.String("handle", handle), zap.Int64("bytes", written))
	return handle, contentType, nil
}

// Open returns the stored file for reading.
// POST: Caller closes the returned file
func (s *Store) Open(handle string) (*os.File, error) {
	path, ok := s.path(handle)
	if !ok {
		return nil, ErrNotFound
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

// ContentType returns the image type a handle was stored as.
func (s *Store) ContentType(handle string) string {
	return registration.ContentTypeFor(filepath.Ext(handle))
}

// PurgeOlderThan deletes uploads last modified before cutoff, catching
// previews whose draft vanished without releasing them.
// POST: Returns the number of files removed
func (s *Store) PurgeOlderThan(cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("read upload dir: %w", err)
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := s.path(e.Name()); !ok {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}

// Release deletes the file behind handle. Unknown handles are ignored.
func (s *Store) Release(handle string) {
	path, ok := s.path(handle)
	if !ok {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("upload_release_failed", zap.String("handle", handle), zap.Error(err))
	}
}

// path maps a handle to a file inside dir.
// INVARIANT: never resolves outside s.dir
func (s *Store) path(handle string) (string, bool) {
	if handle == "" || handle != filepath.Base(handle) || strings.HasPrefix(handle, ".") {
		return "", false
	}
	id := strings.TrimSuffix(handle, filepath.Ext(handle))
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return filepath.Join(s.dir, handle), true
}
