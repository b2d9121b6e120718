package storage

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// LocalStore writes uploaded files under a directory that the HTTP server
// exposes at urlPrefix.
type LocalStore struct {
	dir       string
	urlPrefix string
}

// NewLocalStore creates dir if needed.
func NewLocalStore(dir, urlPrefix string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create upload dir")
	}
	return &LocalStore{dir: dir, urlPrefix: "/" + strings.Trim(urlPrefix, "/")}, nil
}

// Dir is the root directory served for uploaded files.
func (s *LocalStore) Dir() string { return s.dir }

// Save writes data to name (a slash-separated relative path) and returns its URL.
func (s *LocalStore) Save(ctx context.Context, name string, data []byte) (string, error) {
	rel, err := clean(name)
	if err != nil {
		return "", err
	}
	full := filepath.Join(s.dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", errors.WithStack(err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", errors.WithStack(err)
	}
	return s.urlPrefix + "/" + rel, nil
}

// Delete removes the file behind a URL returned by Save. Missing files are ignored.
func (s *LocalStore) Delete(ctx context.Context, url string) error {
	rel, err := clean(strings.TrimPrefix(url, s.urlPrefix))
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(s.dir, filepath.FromSlash(rel)))
	if err != nil && !os.IsNotExist(err) {
		return errors.WithStack(err)
	}
	return nil
}

func clean(name string) (string, error) {
	rel := strings.TrimPrefix(path.Clean("/"+name), "/")
	if rel == "" || rel == "." {
		return "", errors.Errorf("invalid file name %q", name)
	}
	return rel, nil
}
