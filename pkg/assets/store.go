// Package assets abstracts the blob store that holds book cover images.
// The catalog treats it as an opaque key/value service: Save returns a
// durable URL plus a key that is sufficient to delete the blob later.
package assets

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

type Store interface {
	Save(name string, r io.Reader) (url, key string, err error)
	Delete(key string) error
}

// DirStore keeps assets on the local filesystem and serves them under
// a static URL prefix.
type DirStore struct {
	Dir       string
	URLPrefix string
}

func NewDirStore(dir, urlPrefix string) (*DirStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure assets dir: %w", err)
	}
	return &DirStore{Dir: dir, URLPrefix: strings.TrimRight(urlPrefix, "/")}, nil
}

func (s *DirStore) Save(name string, r io.Reader) (string, string, error) {
	ext := filepath.Ext(name)
	key := uuid.NewString() + ext

	f, err := os.Create(filepath.Join(s.Dir, key))
	if err != nil {
		return "", "", fmt.Errorf("create asset: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		_ = os.Remove(f.Name())
		return "", "", fmt.Errorf("write asset: %w", err)
	}

	return s.URLPrefix + "/" + key, key, nil
}

func (s *DirStore) Delete(key string) error {
	// Keys are opaque uuids; reject anything path-like.
	if key == "" || strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("invalid asset key %q", key)
	}
	if err := os.Remove(filepath.Join(s.Dir, key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete asset: %w", err)
	}
	return nil
}
