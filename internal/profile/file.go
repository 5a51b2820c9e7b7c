package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps profiles in memory and rewrites the whole JSON file on
// every change.
type FileStore struct {
	path string

	mu       sync.RWMutex
	profiles map[string]Params
}

// OpenFile loads profiles from path. A missing file yields the default
// presets; the file is only created on the first write.
func OpenFile(path string) (*FileStore, error) {
	s := &FileStore{path: path}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.profiles = Defaults()
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read profiles: %w", err)
	}

	profiles := map[string]Params{}
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("parse profiles %s: %w", path, err)
	}
	s.profiles = profiles

	return s, nil
}

func (s *FileStore) List(_ context.Context) (map[string]Params, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return copyMap(s.profiles), nil
}

func (s *FileStore) Get(_ context.Context, name string) (Params, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[name]
	if !ok {
		return Params{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return p, nil
}

func (s *FileStore) Put(_ context.Context, name string, p Params) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := copyMap(s.profiles)
	next[name] = p
	if err := s.write(next); err != nil {
		return err
	}
	s.profiles = next

	return nil
}

func (s *FileStore) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[name]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	next := copyMap(s.profiles)
	delete(next, name)
	if err := s.write(next); err != nil {
		return err
	}
	s.profiles = next

	return nil
}

// write replaces the file atomically via a sibling temp file.
func (s *FileStore) write(profiles map[string]Params) error {
	data, err := json.MarshalIndent(profiles, "", "  ")
	if err != nil {
		return fmt.Errorf("encode profiles: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".voice_profiles-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write profiles: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace profiles: %w", err)
	}

	return nil
}
