package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
)

type Store struct {
	root  string
	debug bool
}

func New(root string, debug bool) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("local: empty root directory")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("local: couldn't create directory %q: %w", root, err)
	}
	return &Store{root: root, debug: debug}, nil
}

// Put writes to a temporary file first so readers never see partial files.
func (s *Store) Put(ctx context.Context, name string, r io.Reader, contentType string) error {
	dst := filepath.Join(s.root, filepath.Base(name))
	tmp, err := os.CreateTemp(s.root, ".tmp-*")
	if err != nil {
		return fmt.Errorf("local: couldn't create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("local: couldn't write %q: %w", dst, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("local: couldn't close %q: %w", dst, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("local: couldn't move file to %q: %w", dst, err)
	}
	if s.debug {
		log.Println("local: stored", dst, contentType)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, name string, w io.Writer) error {
	src := filepath.Join(s.root, filepath.Base(name))
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("local: couldn't open %q: %w", src, err)
	}
	defer f.Close()
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("local: couldn't read %q: %w", src, err)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	_, err := os.Stat(filepath.Join(s.root, filepath.Base(name)))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("local: couldn't stat %q: %w", name, err)
	}
	return true, nil
}
