// Package fileutils manages the request-scoped temporary copies used while a ledger is
// processed and a workbook is merged.
package fileutils

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"aquere/libros-iva/internal/logging"

	"github.com/google/uuid"
	"github.com/googleapis/gax-go/v2"
)

// FileExists checks if a file exists and is not a directory
func FileExists(filePath string) bool {
	info, err := os.Stat(filePath)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// DirectoryExists checks if a directory exists
func DirectoryExists(dirPath string) bool {
	info, err := os.Stat(dirPath)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// EnsureDirectoryExists creates a directory if it doesn't exist
func EnsureDirectoryExists(dirPath string) error {
	if !DirectoryExists(dirPath) {
		if err := os.MkdirAll(dirPath, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	return nil
}

// ReadFile reads the entire contents of a file.
func ReadFile(filePath string) ([]byte, error) {
	if !FileExists(filePath) {
		return nil, fmt.Errorf("file does not exist: %s", filePath)
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

// ReleasePolicy bounds how hard Release tries to delete a temp file. Backoff is the
// first pause; later pauses double up to eight times that.
type ReleasePolicy struct {
	Attempts int
	Backoff  time.Duration
}

// DefaultReleasePolicy makes three attempts starting half a second apart.
var DefaultReleasePolicy = ReleasePolicy{Attempts: 3, Backoff: 500 * time.Millisecond}

// TempFile is a working copy on local disk. Release must be called on every exit path.
type TempFile struct {
	Path   string
	policy ReleasePolicy
	logger logging.Logger
}

// TempDir hands out TempFiles under one directory.
type TempDir struct {
	dir    string
	policy ReleasePolicy
	logger logging.Logger
}

// NewTempDir returns a TempDir rooted at dir, os.TempDir() when dir is empty.
func NewTempDir(dir string, policy ReleasePolicy, logger logging.Logger) *TempDir {
	if dir == "" {
		dir = os.TempDir()
	}
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	return &TempDir{dir: dir, policy: policy, logger: logger}
}

// Dir returns the root directory.
func (d *TempDir) Dir() string {
	return d.dir
}

// Write stores data in a new uniquely named file carrying the given extension.
func (d *TempDir) Write(data []byte, ext string) (*TempFile, error) {
	if err := EnsureDirectoryExists(d.dir); err != nil {
		return nil, err
	}
	path := filepath.Join(d.dir, "libros-"+uuid.NewString()+ext)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	d.logger.Debug("Temp file created", logging.F(logging.FieldTempFile, path))
	return &TempFile{Path: path, policy: d.policy, logger: d.logger}, nil
}

// Read returns the current contents of the working copy.
func (f *TempFile) Read() ([]byte, error) {
	return ReadFile(f.Path)
}

// Overwrite replaces the contents of the working copy.
func (f *TempFile) Overwrite(data []byte) error {
	if err := os.WriteFile(f.Path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	return nil
}

// Release deletes the working copy. Failures are logged, never returned: a leftover
// temp file must not fail a merge that already committed.
func (f *TempFile) Release(ctx context.Context) {
	if f == nil {
		return
	}
	if err := RemoveWithRetry(ctx, f.Path, f.policy); err != nil {
		f.logger.WithError(err).Warn("Could not remove temp file",
			logging.F(logging.FieldTempFile, f.Path))
		return
	}
	f.logger.Debug("Temp file removed", logging.F(logging.FieldTempFile, f.Path))
}

// RemoveWithRetry deletes path, retrying with the policy's backoff. A file that is
// already gone counts as removed.
func RemoveWithRetry(ctx context.Context, path string, policy ReleasePolicy) error {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}
	initial := policy.Backoff
	if initial <= 0 {
		initial = time.Millisecond
	}
	bo := gax.Backoff{Initial: initial, Max: 8 * initial, Multiplier: 2}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = os.Remove(path)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if attempt == attempts {
			break
		}
		if serr := gax.Sleep(ctx, bo.Pause()); serr != nil {
			return fmt.Errorf("remove %s: %w (last error: %v)", path, serr, err)
		}
	}
	return fmt.Errorf("remove %s after %d attempts: %w", path, attempts, err)
}
