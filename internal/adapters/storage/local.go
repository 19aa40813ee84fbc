// Package storage provides the batch file backends: a local directory, S3,
// Azure Blob Storage and a plain web server. Every backend lists only batch
// files and can store result files next to them.
package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/jobrunner/geotrans/internal/domain"
	"github.com/jobrunner/geotrans/internal/ports/output"
)

// LocalStorage keeps batch files in a directory tree. Keys are slash
// separated paths relative to the base path.
type LocalStorage struct {
	basePath string
	filter   Filter
}

// NewLocalStorage creates a new local storage adapter listing files with
// the given extensions.
func NewLocalStorage(basePath string, extensions ...string) *LocalStorage {
	return &LocalStorage{basePath: basePath, filter: NewFilter(extensions...)}
}

// List returns the batch files below the base path.
func (s *LocalStorage) List(ctx context.Context) ([]output.StorageObject, error) {
	var objects []output.StorageObject

	err := filepath.WalkDir(s.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !s.filter.Match(d.Name()) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.basePath, path)
		if err != nil {
			return err
		}
		objects = append(objects, output.StorageObject{
			Key:          filepath.ToSlash(rel),
			Size:         info.Size(),
			LastModified: info.ModTime().Unix(),
		})
		return nil
	})
	if err != nil {
		return nil, &domain.StorageError{Operation: "list", Key: s.basePath, Err: err}
	}

	return objects, nil
}

// Download copies a batch file to dest. Copying a file onto itself does
// nothing.
func (s *LocalStorage) Download(ctx context.Context, key string, dest string) error {
	if s.FullPath(key) == filepath.Clean(dest) {
		return nil
	}
	rc, err := s.GetReader(ctx, key)
	if err != nil {
		return err
	}
	if err := saveTo(dest, rc); err != nil {
		return &domain.StorageError{Operation: "download", Key: key, Err: err}
	}
	return nil
}

// Put writes a result file. An existing file is replaced atomically, so the
// watcher never sees a half written result.
func (s *LocalStorage) Put(_ context.Context, key string, body io.Reader) error {
	dest := s.FullPath(key)
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return &domain.StorageError{Operation: "put", Key: key, Err: err}
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".geotrans-*")
	if err != nil {
		return &domain.StorageError{Operation: "put", Key: key, Err: err}
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, body); err != nil {
		_ = tmp.Close()
		return &domain.StorageError{Operation: "put", Key: key, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &domain.StorageError{Operation: "put", Key: key, Err: err}
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return &domain.StorageError{Operation: "put", Key: key, Err: err}
	}
	return nil
}

// GetReader opens a batch file. A missing file wraps os.ErrNotExist.
func (s *LocalStorage) GetReader(_ context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(s.FullPath(key)) //#nosec G304 -- key is relative to the configured base path
	if err != nil {
		return nil, &domain.StorageError{Operation: "read", Key: key, Err: err}
	}
	return f, nil
}

// Exists reports whether key exists.
func (s *LocalStorage) Exists(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(s.FullPath(key))
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, &domain.StorageError{Operation: "exists", Key: key, Err: err}
	}
}

// FullPath returns the file path of key.
func (s *LocalStorage) FullPath(key string) string {
	return filepath.Join(s.basePath, filepath.FromSlash(key))
}

// Key returns the key of a file below the base path. Paths outside the base
// path are rejected.
func (s *LocalStorage) Key(path string) (string, error) {
	base, err := filepath.Abs(s.basePath)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(base, abs)
	if err != nil {
		return "", err
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside %s: %w", path, s.basePath, domain.ErrInvalidInput)
	}
	return filepath.ToSlash(rel), nil
}

// Filter returns the batch file filter.
func (s *LocalStorage) Filter() Filter {
	return s.filter
}
