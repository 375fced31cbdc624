package blob

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// LocalStore keeps attachment objects on the local filesystem under a
// root directory. Storage keys map to relative file paths.
type LocalStore struct {
	root string
}

// NewLocalStore creates a local store rooted at dir.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.Wrapf(err, "unable to create blob directory %s", dir)
	}
	return &LocalStore{root: dir}, nil
}

func (s *LocalStore) Put(_ context.Context, key string, data []byte) error {
	p, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return errors.Wrap(err, "failed to create blob subdirectory")
	}
	return os.WriteFile(p, data, 0o640)
}

func (s *LocalStore) Get(_ context.Context, key string) ([]byte, error) {
	p, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read blob %s", key)
	}
	return data, nil
}

func (s *LocalStore) BatchDelete(_ context.Context, keys []string) error {
	var firstErr error
	for _, key := range keys {
		p, err := s.resolve(key)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			slog.Error("failed to delete blob file", "key", key, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// resolve maps a storage key to an absolute path, rejecting keys that
// would escape the root.
func (s *LocalStore) resolve(key string) (string, error) {
	if key == "" {
		return "", errors.New("empty blob key")
	}
	p := filepath.Join(s.root, filepath.FromSlash(key))
	if !strings.HasPrefix(p, s.root+string(os.PathSeparator)) {
		return "", errors.Errorf("blob key %q escapes store root", key)
	}
	return p, nil
}

var _ Store = (*LocalStore)(nil)
