package storage

import (
	"encoding/json"
	"fmt"

	"github.com/cuemby/poanet/pkg/types"
)

// Store defines the interface for roster storage. The roster is read and
// written as a whole document; there are no partial updates.
type Store interface {
	// Load returns every network. A store with no roster yet is initialized
	// to an empty roster, which is persisted.
	Load() ([]*types.Network, error)

	// Save overwrites the whole roster
	Save(networks []*types.Network) error

	// FindByName returns the network with exactly this name
	FindByName(name string) (*types.Network, error)

	// Update runs load, fn and save as one step with respect to other
	// Update calls on the same store.
	Update(fn func(networks []*types.Network) ([]*types.Network, error)) error

	// Close releases the backing resources
	Close() error
}

func encodeRoster(networks []*types.Network) ([]byte, error) {
	if networks == nil {
		networks = []*types.Network{}
	}
	data, err := json.MarshalIndent(networks, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encode roster: %w", types.ErrPersistence, err)
	}
	return data, nil
}

func decodeRoster(data []byte) ([]*types.Network, error) {
	var networks []*types.Network
	if err := json.Unmarshal(data, &networks); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrCorruptRoster, err)
	}
	for i, n := range networks {
		if n == nil {
			return nil, fmt.Errorf("%w: entry %d is null", types.ErrCorruptRoster, i)
		}
		if n.Nodes == nil {
			n.Nodes = []*types.Node{}
		}
	}
	if networks == nil {
		networks = []*types.Network{}
	}
	return networks, nil
}

func findByName(networks []*types.Network, name string) (*types.Network, error) {
	for _, n := range networks {
		if n.Name == name {
			return n, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", types.ErrNetworkNotFound, name)
}
