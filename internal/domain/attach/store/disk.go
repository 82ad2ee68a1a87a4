package store

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

type diskStore struct {
	root       string
	publicBase string
}

// NewDisk builds a filesystem-backed blob store rooted at cfg.Dir. URLs
// join the public base with the /attachments mount the web server
// exposes over the same directory.
func NewDisk(cfg Config) (BlobStore, error) {
	root := cfg.Dir
	if root == "" {
		root = "data/attachments"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create attachment dir: %w", err)
	}
	return &diskStore{
		root:       root,
		publicBase: strings.TrimRight(cfg.PublicBase, "/"),
	}, nil
}

// path resolves a key below the root. Keys are forward-slash relative
// paths; anything that could escape the root is rejected.
func (s *diskStore) path(key string) (string, error) {
	if key == "" || strings.Contains(key, "..") || strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("invalid blob key: %q", key)
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

func (s *diskStore) Put(_ context.Context, key string, reader io.Reader, _ int64, _ string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create blob dir: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create blob %q: %w", key, err)
	}
	if _, err := io.Copy(file, reader); err != nil {
		file.Close()
		os.Remove(path)
		return fmt.Errorf("write blob %q: %w", key, err)
	}
	return file.Close()
}

func (s *diskStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("blob not found: %s", key)
		}
		return nil, fmt.Errorf("open blob %q: %w", key, err)
	}
	return file, nil
}

func (s *diskStore) Remove(_ context.Context, key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove blob %q: %w", key, err)
	}
	return nil
}

func (s *diskStore) URL(key string) string {
	return s.publicBase + "/attachments/" + key
}
