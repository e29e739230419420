package storage

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/cuemby/poanet/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketRoster = []byte("roster")
	keyNetworks  = []byte("networks")
)

// BoltStore keeps the roster document under a single key in BoltDB
type BoltStore struct {
	db *bolt.DB
	mu sync.Mutex
}

// NewBoltStore creates a new BoltDB-backed store in dataDir
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "poanet.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketRoster); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketRoster, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Load returns every network, initializing the roster when missing
func (s *BoltStore) Load() ([]*types.Network, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var networks []*types.Network
	err := s.db.Update(func(tx *bolt.Tx) error {
		var err error
		networks, err = loadTx(tx)
		return err
	})
	return networks, err
}

// Save overwrites the roster
func (s *BoltStore) Save(networks []*types.Network) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bolt.Tx) error {
		return saveTx(tx, networks)
	})
}

// FindByName returns the network with exactly this name
func (s *BoltStore) FindByName(name string) (*types.Network, error) {
	networks, err := s.Load()
	if err != nil {
		return nil, err
	}
	return findByName(networks, name)
}

// Update runs fn inside a single write transaction
func (s *BoltStore) Update(fn func(networks []*types.Network) ([]*types.Network, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bolt.Tx) error {
		networks, err := loadTx(tx)
		if err != nil {
			return err
		}
		updated, err := fn(networks)
		if err != nil {
			return err
		}
		return saveTx(tx, updated)
	})
}

func loadTx(tx *bolt.Tx) ([]*types.Network, error) {
	b := tx.Bucket(bucketRoster)
	data := b.Get(keyNetworks)
	if data == nil {
		empty := []*types.Network{}
		if err := saveTx(tx, empty); err != nil {
			return nil, err
		}
		return empty, nil
	}
	return decodeRoster(data)
}

func saveTx(tx *bolt.Tx, networks []*types.Network) error {
	data, err := encodeRoster(networks)
	if err != nil {
		return err
	}
	if err := tx.Bucket(bucketRoster).Put(keyNetworks, data); err != nil {
		return fmt.Errorf("%w: failed to write roster: %w", types.ErrPersistence, err)
	}
	return nil
}
