package gcsuploader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore keeps objects under a directory and addresses them as file://
// URIs. It backs development setups without a bucket.
type LocalStore struct {
	root string
}

// NewLocalStore creates the root directory if needed.
func NewLocalStore(root string) (*LocalStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("NewLocalStore: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("NewLocalStore: create %s: %w", abs, err)
	}
	return &LocalStore{root: abs}, nil
}

// Put writes r to root/name.
func (s *LocalStore) Put(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	target, err := s.resolve(name)
	if err != nil {
		return "", fmt.Errorf("Put: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("Put: %w", err)
	}

	f, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("Put: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return "", fmt.Errorf("Put: write %s: %w", target, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("Put: %w", err)
	}
	return "file://" + filepath.ToSlash(target), nil
}

// Fetch reads a file:// URI inside the root.
func (s *LocalStore) Fetch(ctx context.Context, uri string) ([]byte, error) {
	p, err := s.pathFromURI(uri)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("Fetch: %s: %w", uri, ErrObjectNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}
	return data, nil
}

// Delete removes a file:// URI inside the root.
func (s *LocalStore) Delete(ctx context.Context, uri string) error {
	p, err := s.pathFromURI(uri)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	err = os.Remove(p)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("Delete: %s: %w", uri, ErrObjectNotFound)
	}
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	return nil
}

func (s *LocalStore) pathFromURI(uri string) (string, error) {
	if !strings.HasPrefix(uri, "file://") {
		return "", fmt.Errorf("invalid file URI: %s", uri)
	}
	p := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(uri, "file://")))
	if !s.contains(p) {
		return "", fmt.Errorf("path outside store root: %s", uri)
	}
	return p, nil
}

// resolve maps an object name to a path, refusing escapes from the root.
func (s *LocalStore) resolve(name string) (string, error) {
	p := filepath.Join(s.root, filepath.FromSlash(name))
	if !s.contains(p) {
		return "", fmt.Errorf("object name escapes store root: %s", name)
	}
	return p, nil
}

func (s *LocalStore) contains(p string) bool {
	rel, err := filepath.Rel(s.root, p)
	return err == nil && rel != "." && !strings.HasPrefix(rel, "..")
}

var _ ObjectStore = (*LocalStore)(nil)
