package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FSStore is a filesystem store shared by every project on the machine:
//
//	<base>/
//	  objects/
//	    ab/
//	      cd1234... (first 2 chars = subdir, rest = filename)
type FSStore struct {
	basePath string
}

// NewFSStore creates the store directory layout under basePath.
func NewFSStore(basePath string) (*FSStore, error) {
	if err := os.MkdirAll(filepath.Join(basePath, "objects"), 0o750); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &FSStore{basePath: basePath}, nil
}

func (fs *FSStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(fs.objectPath(key))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	return data, err
}

// Put writes through a temporary file so readers never see partial entries.
func (fs *FSStore) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p := fs.objectPath(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return fmt.Errorf("create object directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".put-*")
	if err != nil {
		return fmt.Errorf("create temp object: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close object: %w", err)
	}
	return os.Rename(tmp.Name(), p)
}

func (fs *FSStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(fs.objectPath(key))
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}

func (fs *FSStore) Close() error { return nil }

func (fs *FSStore) objectPath(key string) string {
	if len(key) < 3 {
		return filepath.Join(fs.basePath, "objects", key)
	}
	return filepath.Join(fs.basePath, "objects", key[:2], key[2:])
}
