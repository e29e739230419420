package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/cuemby/poanet/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStores(t *testing.T) map[string]Store {
	t.Helper()

	bolt, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { bolt.Close() })

	return map[string]Store{
		"file": NewFileStore(filepath.Join(t.TempDir(), "networks.json")),
		"bolt": bolt,
	}
}

func testNetwork(name string) *types.Network {
	return &types.Network{
		Name:          name,
		ChainID:       1337,
		BlockTime:     5,
		BootnodeEnode: "enode://abc@10.0.0.1:30303",
		Nodes: []*types.Node{
			{Name: "signer1", Port: 31000, Address: "0x" + "11" + "00000000000000000000000000000000000000", Role: types.NodeRoleSigner},
		},
	}
}

func TestStore_LoadInitializesEmpty(t *testing.T) {
	for name, store := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			networks, err := store.Load()
			require.NoError(t, err)
			assert.NotNil(t, networks)
			assert.Empty(t, networks)
		})
	}
}

func TestStore_SaveLoad(t *testing.T) {
	for name, store := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Save([]*types.Network{testNetwork("alpha"), testNetwork("beta")}))

			networks, err := store.Load()
			require.NoError(t, err)
			require.Len(t, networks, 2)
			assert.Equal(t, "alpha", networks[0].Name)
			assert.Equal(t, "beta", networks[1].Name)
			assert.Equal(t, testNetwork("alpha"), networks[0])
		})
	}
}

func TestStore_FindByName(t *testing.T) {
	for name, store := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Save([]*types.Network{testNetwork("alpha")}))

			n, err := store.FindByName("alpha")
			require.NoError(t, err)
			assert.Equal(t, int64(1337), n.ChainID)

			_, err = store.FindByName("Alpha")
			assert.ErrorIs(t, err, types.ErrNetworkNotFound)
		})
	}
}

func TestStore_UpdateErrorLeavesRoster(t *testing.T) {
	for name, store := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Save([]*types.Network{testNetwork("alpha")}))

			boom := errors.New("boom")
			err := store.Update(func(networks []*types.Network) ([]*types.Network, error) {
				return nil, boom
			})
			assert.ErrorIs(t, err, boom)

			networks, err := store.Load()
			require.NoError(t, err)
			assert.Len(t, networks, 1)
		})
	}
}

func TestStore_ConcurrentUpdates(t *testing.T) {
	for name, store := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					err := store.Update(func(networks []*types.Network) ([]*types.Network, error) {
						return append(networks, testNetwork(fmt.Sprintf("net%d", i))), nil
					})
					assert.NoError(t, err)
				}(i)
			}
			wg.Wait()

			networks, err := store.Load()
			require.NoError(t, err)
			assert.Len(t, networks, 20)
		})
	}
}

func TestFileStore_Corrupt(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", "{{{"},
		{"object", `{"networkName":"alpha"}`},
		{"null entry", `[null]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "networks.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			_, err := NewFileStore(path).Load()
			assert.ErrorIs(t, err, types.ErrCorruptRoster)
		})
	}
}

func TestFileStore_WritesFileOnFirstLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "networks.json")
	store := NewFileStore(path)

	_, err := store.Load()
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestFileStore_FieldNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "networks.json")
	store := NewFileStore(path)
	require.NoError(t, store.Save([]*types.Network{testNetwork("alpha")}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	for _, field := range []string{`"networkName"`, `"chainId"`, `"blockTime"`, `"bootnodeEnode"`, `"nodeName"`, `"nodeType": "signer"`} {
		assert.Contains(t, string(data), field)
	}
	assert.NotContains(t, string(data), `"alloc"`)
}
