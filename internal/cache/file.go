package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Dir stores each key as a file. It backs the secondary tier with a
// temporary directory when the database is unavailable.
type Dir struct {
	path string
}

// NewDir returns a directory tier rooted at path. The directory is created
// lazily on first Put.
func NewDir(path string) *Dir {
	return &Dir{path: path}
}

// Name implements Tier.
func (d *Dir) Name() string { return "file" }

func (d *Dir) file(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", fmt.Errorf("invalid cache key %q", key)
	}
	return filepath.Join(d.path, key+".bin"), nil
}

// Put implements Tier.
func (d *Dir) Put(key string, value []byte) error {
	p, err := d.file(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(d.path, 0700); err != nil {
		return err
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, value, 0600); err != nil {
		return err
	}
	if err := os.Rename(tmp, p); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// Take implements Tier.
func (d *Dir) Take(key string) ([]byte, error) {
	p, err := d.file(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return data, nil
}
