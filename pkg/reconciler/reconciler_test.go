package reconciler

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/poanet/pkg/events"
	"github.com/cuemby/poanet/pkg/manifest"
	"github.com/cuemby/poanet/pkg/metrics"
	"github.com/cuemby/poanet/pkg/network"
	"github.com/cuemby/poanet/pkg/runtime"
	"github.com/cuemby/poanet/pkg/storage"
	"github.com/cuemby/poanet/pkg/types"
	"github.com/cuemby/poanet/pkg/volume"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// psRuntime only answers RunningServices
type psRuntime struct {
	runtime.Runtime
	running []string
	err     error
}

func (p *psRuntime) RunningServices(ctx context.Context, project runtime.Project) ([]string, error) {
	return p.running, p.err
}

func setup(t *testing.T, rosterNodes []string, manifestNodes []string) (*volume.LocalDriver, storage.Store) {
	t.Helper()

	driver, err := volume.NewLocalDriver(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, driver.CreateNetwork("testnet"))

	mf, err := manifest.New(manifest.BootnodeSpec{KeyDir: driver.BootnodePath("testnet"), HostIP: "10.0.0.5"})
	require.NoError(t, err)
	ports := network.NewPortAllocator(nil)
	for _, name := range manifestNodes {
		_, err := mf.UpsertNodeService(manifest.NodeService{
			Name: name,
			Paths: manifest.NodePaths{
				NodeDir:      driver.NodePath("testnet", name),
				PasswordFile: driver.PasswordPath("testnet", name),
				GenesisFile:  driver.GenesisPath("testnet"),
			},
		}, ports)
		require.NoError(t, err)
	}
	require.NoError(t, mf.Save(driver.ManifestPath("testnet")))

	n := &types.Network{
		Name:  "testnet",
		Nodes: []*types.Node{{Name: "bootnode", Role: types.NodeRoleBootnode}},
	}
	for _, name := range rosterNodes {
		n.Nodes = append(n.Nodes, &types.Node{Name: name, Role: types.NodeRoleSigner})
	}

	store := storage.NewFileStore(filepath.Join(driver.BasePath(), "networks.json"))
	require.NoError(t, store.Save([]*types.Network{n}))
	return driver, store
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name              string
		roster            []string
		manifest          []string
		missingInManifest []string
		missingInRoster   []string
	}{
		{"in sync", []string{"signer1", "rpc1"}, []string{"signer1", "rpc1"}, []string{}, []string{}},
		{"roster only", []string{"signer1", "orphan"}, []string{"signer1"}, []string{"orphan"}, []string{}},
		{"manifest only", []string{"signer1"}, []string{"signer1", "stray"}, []string{}, []string{"stray"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			driver, store := setup(t, tt.roster, tt.manifest)
			r := NewReconciler(&Config{
				Store:   store,
				Driver:  driver,
				Runtime: &psRuntime{running: []string{"bootnode"}},
			})

			drifts, err := r.Check(context.Background())
			require.NoError(t, err)
			require.Len(t, drifts, 1)

			d := drifts[0]
			assert.Equal(t, "testnet", d.Network)
			assert.Equal(t, tt.missingInManifest, d.MissingInManifest)
			assert.Equal(t, tt.missingInRoster, d.MissingInRoster)
			assert.Equal(t, []string{"bootnode"}, d.RunningServices)
			assert.Equal(t, float64(d.Count()), testutil.ToFloat64(metrics.RosterDrift.WithLabelValues("testnet")))
			assert.Equal(t, drifts, r.Last())
		})
	}
}

func TestCheck_PublishesDrift(t *testing.T) {
	driver, store := setup(t, []string{"orphan"}, nil)

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	sub := broker.Subscribe()

	r := NewReconciler(&Config{Store: store, Driver: driver, Runtime: &psRuntime{}, Events: broker})
	_, err := r.Check(context.Background())
	require.NoError(t, err)

	select {
	case e := <-sub:
		assert.Equal(t, events.EventRosterDrift, e.Type)
		assert.Equal(t, "testnet", e.Metadata["network"])
	case <-time.After(2 * time.Second):
		t.Fatal("no drift event")
	}
}

func TestCheck_RuntimeFailureIsNotFatal(t *testing.T) {
	driver, store := setup(t, []string{"signer1"}, []string{"signer1"})

	r := NewReconciler(&Config{Store: store, Driver: driver, Runtime: &psRuntime{err: errors.New("daemon down")}})
	drifts, err := r.Check(context.Background())
	require.NoError(t, err)
	assert.Nil(t, drifts[0].RunningServices)
	assert.False(t, drifts[0].Drifted())
}

func TestCheck_RuntimeComponentHealth(t *testing.T) {
	driver, store := setup(t, []string{"signer1"}, []string{"signer1"})
	rt := &psRuntime{err: errors.New("daemon down")}
	r := NewReconciler(&Config{Store: store, Driver: driver, Runtime: rt})

	_, err := r.Check(context.Background())
	require.NoError(t, err)
	comp, ok := metrics.GetComponent(metrics.ComponentRuntime)
	require.True(t, ok)
	assert.False(t, comp.Healthy)
	assert.Equal(t, "running-services query failed", comp.Message)

	rt.err = nil
	rt.running = []string{"bootnode"}
	_, err = r.Check(context.Background())
	require.NoError(t, err)
	comp, _ = metrics.GetComponent(metrics.ComponentRuntime)
	assert.True(t, comp.Healthy)
	assert.Empty(t, comp.Message)
}

func TestCheck_DropsRemovedNetworkSeries(t *testing.T) {
	driver, store := setup(t, []string{"orphan"}, nil)
	r := NewReconciler(&Config{Store: store, Driver: driver, Runtime: &psRuntime{}})

	_, err := r.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.RosterDrift))

	require.NoError(t, store.Save([]*types.Network{}))
	drifts, err := r.Check(context.Background())
	require.NoError(t, err)
	assert.Empty(t, drifts)
	assert.Equal(t, 0, testutil.CollectAndCount(metrics.RosterDrift))
}

func TestCheck_CorruptRoster(t *testing.T) {
	driver, err := volume.NewLocalDriver(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, volume.WriteFile(driver.RosterPath(), []byte("not json"), 0644))

	r := NewReconciler(&Config{Store: storage.NewFileStore(driver.RosterPath()), Driver: driver, Runtime: &psRuntime{}})
	_, err = r.Check(context.Background())
	assert.ErrorIs(t, err, types.ErrCorruptRoster)
}

func TestStartStop(t *testing.T) {
	driver, store := setup(t, nil, nil)

	r := NewReconciler(&Config{Store: store, Driver: driver, Runtime: &psRuntime{running: []string{}}, Interval: 10 * time.Millisecond})
	r.Start(context.Background())

	require.Eventually(t, func() bool { return r.Last() != nil }, 2*time.Second, 10*time.Millisecond)
	r.Stop()
	r.Stop()
}
