package storage

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/cuemby/poanet/pkg/types"
	"github.com/cuemby/poanet/pkg/volume"
)

// FileStore keeps the roster as a JSON array in a single file
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a store backed by the file at path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the roster file path
func (s *FileStore) Path() string {
	return s.path
}

// Load returns every network, initializing the file when missing
func (s *FileStore) Load() ([]*types.Network, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Save overwrites the roster file
func (s *FileStore) Save(networks []*types.Network) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(networks)
}

// FindByName returns the network with exactly this name
func (s *FileStore) FindByName(name string) (*types.Network, error) {
	networks, err := s.Load()
	if err != nil {
		return nil, err
	}
	return findByName(networks, name)
}

// Update runs a read-modify-write cycle under the store lock
func (s *FileStore) Update(fn func(networks []*types.Network) ([]*types.Network, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	networks, err := s.load()
	if err != nil {
		return err
	}
	updated, err := fn(networks)
	if err != nil {
		return err
	}
	return s.save(updated)
}

// Close is a no-op for the file store
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) load() ([]*types.Network, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		empty := []*types.Network{}
		if err := s.save(empty); err != nil {
			return nil, err
		}
		return empty, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read roster %s: %w", types.ErrPersistence, s.path, err)
	}

	networks, err := decodeRoster(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	return networks, nil
}

func (s *FileStore) save(networks []*types.Network) error {
	data, err := encodeRoster(networks)
	if err != nil {
		return err
	}
	if err := volume.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("%w: failed to write roster %s: %w", types.ErrPersistence, s.path, err)
	}
	return nil
}
