package manifest

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/cuemby/poanet/pkg/network"
	"github.com/cuemby/poanet/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func testAllocator() *network.PortAllocator {
	return network.NewPortAllocator(rand.NewPCG(3, 5))
}

func testNodeService(dir, name string) NodeService {
	return NodeService{
		Name:  name,
		Flags: []string{"--datadir /root/.ethereum", "--networkid 1337"},
		Paths: NodePaths{
			NodeDir:      filepath.Join(dir, name),
			PasswordFile: filepath.Join(dir, name, "password.txt"),
			GenesisFile:  filepath.Join(dir, "genesis.json"),
		},
	}
}

func newTestManifest(t *testing.T, dir string) *Manifest {
	m, err := New(BootnodeSpec{KeyDir: filepath.Join(dir, "bootnode"), HostIP: "192.168.1.10"})
	require.NoError(t, err)
	return m
}

func decode(t *testing.T, m *Manifest) map[string]any {
	data, err := m.Bytes()
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, yaml.Unmarshal(data, &out))
	return out
}

func TestNew_Bootnode(t *testing.T) {
	dir := t.TempDir()
	m := newTestManifest(t, dir)

	doc := decode(t, m)
	assert.NotContains(t, doc, "version")
	assert.Equal(t, map[string]any{"custom_bridge": map[string]any{"driver": "bridge"}}, doc["networks"])
	assert.Equal(t, []string{BootnodeService}, m.ServiceNames())

	svc, err := m.Service(BootnodeService)
	require.NoError(t, err)
	assert.Equal(t, DefaultImage, svc.Image)
	assert.Equal(t, "bootnode --nodekey /root/.ethereum/boot.key --addr 0.0.0.0:30303 --nat extip:192.168.1.10 --verbosity 9", svc.Command)
	assert.Equal(t, []string{"30303:30303", "30303:30303/udp"}, svc.Ports)
	assert.Equal(t, []string{BridgeNetwork}, svc.Networks)
	require.Len(t, svc.Volumes, 1)
	assert.Equal(t, ContainerDataDir, svc.Volumes[0].Target)
}

func TestUpsertNodeService(t *testing.T) {
	dir := t.TempDir()
	m := newTestManifest(t, dir)

	assigned, err := m.UpsertNodeService(testNodeService(dir, "signer1"), testAllocator())
	require.NoError(t, err)

	svc, err := m.Service("signer1")
	require.NoError(t, err)

	assert.Equal(t, DefaultImage, svc.Image)
	require.Len(t, svc.Entrypoint, 3)
	assert.Equal(t, []string{"sh", "-c"}, svc.Entrypoint[:2])
	assert.Equal(t, "geth init --datadir /root/.ethereum /root/genesis.json && geth --datadir /root/.ethereum --networkid 1337", svc.Entrypoint[2])
	assert.Equal(t, []string{BridgeNetwork}, svc.Networks)

	// Three bind mounts with absolute forward-slash sources
	require.Len(t, svc.Volumes, 3)
	targets := []string{ContainerDataDir, ContainerPasswordFile, ContainerGenesisFile}
	for i, v := range svc.Volumes {
		assert.Equal(t, "bind", v.Type)
		assert.Equal(t, targets[i], v.Target)
		assert.NotContains(t, v.Source, `\`)
		assert.True(t, filepath.IsAbs(filepath.FromSlash(v.Source)), v.Source)
	}

	// Ports match the assignment and never collide with the bootnode's
	assert.Equal(t, []string{
		strconv.Itoa(assigned.TCP) + ":30303",
		strconv.Itoa(assigned.UDP) + ":30303/udp",
		strconv.Itoa(assigned.RPC) + ":8545",
	}, svc.Ports)
	assert.NotEqual(t, assigned.TCP, assigned.UDP)
	assert.NotEqual(t, 30303, assigned.TCP)
	assert.NotEqual(t, 30303, assigned.UDP)
	assert.GreaterOrEqual(t, assigned.RPC, network.DefaultRPCBase)
	assert.Less(t, assigned.RPC, network.DefaultRPCBase+network.PortSpan)
}

func TestUpsertNodeService_PortsDistinctAcrossServices(t *testing.T) {
	dir := t.TempDir()
	m := newTestManifest(t, dir)
	allocator := testAllocator()

	for _, name := range []string{"a", "b", "c", "d", "e"} {
		_, err := m.UpsertNodeService(testNodeService(dir, name), allocator)
		require.NoError(t, err)
	}

	seen := make(map[int]string)
	for _, name := range m.ServiceNames() {
		svc, err := m.Service(name)
		require.NoError(t, err)
		for _, p := range svc.Ports {
			port, ok := hostPort(&yaml.Node{Kind: yaml.ScalarNode, Value: p})
			require.True(t, ok)
			if name == BootnodeService {
				continue // tcp and udp share 30303
			}
			prev, dup := seen[port]
			assert.False(t, dup, "port %d used by %s and %s", port, prev, name)
			seen[port] = name
		}
	}
}

func TestUpsertNodeService_Overwrites(t *testing.T) {
	dir := t.TempDir()
	m := newTestManifest(t, dir)

	_, err := m.UpsertNodeService(testNodeService(dir, "rpc1"), testAllocator())
	require.NoError(t, err)

	spec := testNodeService(dir, "rpc1")
	spec.Flags = []string{"--http"}
	_, err = m.UpsertNodeService(spec, testAllocator())
	require.NoError(t, err)

	assert.Equal(t, []string{BootnodeService, "rpc1"}, m.ServiceNames())
	svc, _ := m.Service("rpc1")
	assert.True(t, strings.HasSuffix(svc.Entrypoint[2], "&& geth --http"))
}

func TestUpsertNodeService_MissingMount(t *testing.T) {
	m := Empty()
	spec := NodeService{Name: "x", Paths: NodePaths{NodeDir: "/a"}}

	_, err := m.UpsertNodeService(spec, testAllocator())
	assert.ErrorIs(t, err, types.ErrValidation)
	assert.False(t, m.HasService("x"))
}

func TestRemoveNodeService_Missing(t *testing.T) {
	dir := t.TempDir()
	m := newTestManifest(t, dir)
	before, _ := m.Bytes()

	assert.False(t, m.RemoveNodeService("ghost"))

	after, _ := m.Bytes()
	assert.Equal(t, before, after)
}

func TestAddRemove_RestoresBytes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "testnet_docker-compose.yml")

	m := newTestManifest(t, dir)
	_, err := m.UpsertNodeService(testNodeService(dir, "signer1"), testAllocator())
	require.NoError(t, err)
	require.NoError(t, m.Save(path))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	loaded, err := Load(path)
	require.NoError(t, err)
	_, err = loaded.UpsertNodeService(testNodeService(dir, "signer2"), testAllocator())
	require.NoError(t, err)
	require.NoError(t, loaded.Save(path))

	loaded, err = Load(path)
	require.NoError(t, err)
	assert.True(t, loaded.RemoveNodeService("signer2"))
	require.NoError(t, loaded.Save(path))

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestParse_PreservesUnrelatedEntries(t *testing.T) {
	input := `version: "3.8"
services:
  # monitoring sidecar
  prometheus:
    image: prom/prometheus
    ports: ["9090:9090"]
x-custom:
  keep: true
`
	m, err := Parse([]byte(input))
	require.NoError(t, err)

	dir := t.TempDir()
	assigned, err := m.UpsertNodeService(testNodeService(dir, "member1"), testAllocator())
	require.NoError(t, err)
	assert.NotEqual(t, 9090, assigned.RPC)

	out, err := m.Bytes()
	require.NoError(t, err)
	text := string(out)

	assert.Contains(t, text, `version: "3.8"`)
	assert.Contains(t, text, "# monitoring sidecar")
	assert.Contains(t, text, `"9090:9090"`)
	assert.Contains(t, text, "x-custom:")
	assert.Contains(t, text, "custom_bridge:")
	assert.Equal(t, []string{"prometheus", "member1"}, m.ServiceNames())

	_, used := m.PublishedPorts()[9090]
	assert.True(t, used)
}

func TestParse_Corrupt(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"invalid yaml", "services: [unclosed"},
		{"top level sequence", "- a\n- b\n"},
		{"services not mapping", "services: 3\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			assert.ErrorIs(t, err, types.ErrCorruptManifest)
		})
	}
}

func TestLoad_Missing(t *testing.T) {
	m, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.NoError(t, err)
	assert.Empty(t, m.ServiceNames())

	doc := decode(t, m)
	assert.Contains(t, doc, "networks")
}
