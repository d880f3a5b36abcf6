package images

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
)

// DirStore keeps images under a local media directory.
type DirStore struct {
	Root string
}

func NewDirStore(root string) (*DirStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	return &DirStore{Root: abs}, nil
}

func (s *DirStore) Put(_ context.Context, productID, contentType string, r io.Reader) (string, error) {
	key := newKey(productID, contentType)
	full := filepath.Join(s.Root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", err
	}
	f, err := os.OpenFile(full, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, io.LimitReader(r, MaxUploadBytes+1)); err != nil {
		f.Close()
		_ = os.Remove(full)
		return "", err
	}
	return key, f.Close()
}

func (s *DirStore) Open(_ context.Context, key string) (io.ReadCloser, string, error) {
	clean, ok := CleanKey(key)
	if !ok {
		return nil, "", ErrNotFound
	}
	f, err := os.Open(filepath.Join(s.Root, filepath.FromSlash(clean)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", err
	}
	return f, mime.TypeByExtension(filepath.Ext(clean)), nil
}

func (s *DirStore) Delete(_ context.Context, key string) error {
	clean, ok := CleanKey(key)
	if !ok {
		return ErrNotFound
	}
	err := os.Remove(filepath.Join(s.Root, filepath.FromSlash(clean)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (s *DirStore) DeleteProduct(_ context.Context, productID string) (int, error) {
	dir := filepath.Join(s.Root, filepath.FromSlash(productPrefix(productID)))
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			return n, err
		}
		n++
	}
	_ = os.Remove(dir)
	return n, nil
}
