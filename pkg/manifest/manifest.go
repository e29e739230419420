package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/cuemby/poanet/pkg/network"
	"github.com/cuemby/poanet/pkg/types"
	"github.com/cuemby/poanet/pkg/volume"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultImage is the geth alltools image used for every service
	DefaultImage = "ethereum/client-go:alltools-v1.11.5"

	// BridgeNetwork is the compose network every service attaches to
	BridgeNetwork = "custom_bridge"

	// BootnodeService is the service key of the network's bootnode
	BootnodeService = "bootnode"

	// ContainerDataDir is the node state directory inside containers
	ContainerDataDir = "/root/.ethereum"

	// ContainerPasswordFile is the mounted password file
	ContainerPasswordFile = ContainerDataDir + "/password.txt"

	// ContainerGenesisFile is the mounted genesis document
	ContainerGenesisFile = "/root/genesis.json"

	// ContainerBootKey is the bootnode key inside the bootnode container
	ContainerBootKey = ContainerDataDir + "/boot.key"

	// P2PPort is the devp2p port inside containers
	P2PPort = 30303

	// RPCPort is the HTTP-RPC port inside containers
	RPCPort = 8545
)

// Service is a compose service definition
type Service struct {
	Image      string      `yaml:"image"`
	Command    string      `yaml:"command,omitempty"`
	Entrypoint []string    `yaml:"entrypoint,omitempty"`
	Volumes    []BindMount `yaml:"volumes,omitempty"`
	Ports      []string    `yaml:"ports,omitempty"`
	Networks   []string    `yaml:"networks,omitempty"`
}

// BindMount is a long-syntax compose bind volume
type BindMount struct {
	Type   string `yaml:"type"`
	Source string `yaml:"source"`
	Target string `yaml:"target"`
}

// NodePaths are the host paths mounted into a node container
type NodePaths struct {
	NodeDir      string
	PasswordFile string
	GenesisFile  string
}

// NodeService describes the node service to upsert
type NodeService struct {
	Name    string
	Image   string
	Flags   []string
	Paths   NodePaths
	P2PBase int
	RPCBase int
}

// BootnodeSpec describes the fixed bootnode service
type BootnodeSpec struct {
	Image  string
	KeyDir string
	HostIP string
	Port   int
}

// PortAssignment holds the host ports published for a node service
type PortAssignment struct {
	TCP int
	UDP int
	RPC int
}

// Manifest is a compose file held as a YAML node tree, so entries the
// builder does not touch keep their order, style and comments.
type Manifest struct {
	doc *yaml.Node
}

// Empty returns a manifest with an empty services mapping and the bridge
// network declaration.
func Empty() *Manifest {
	m := &Manifest{doc: &yaml.Node{
		Kind:    yaml.DocumentNode,
		Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}},
	}}
	m.normalize()
	return m
}

// New returns a manifest containing only the bootnode service
func New(spec BootnodeSpec) (*Manifest, error) {
	m := Empty()
	if err := m.setBootnode(spec); err != nil {
		return nil, err
	}
	return m, nil
}

// Parse decodes a compose document
func Parse(data []byte) (*Manifest, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrCorruptManifest, err)
	}
	if doc.Kind == 0 {
		return Empty(), nil
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: top level is not a mapping", types.ErrCorruptManifest)
	}
	if services := mappingValue(doc.Content[0], "services"); services != nil && services.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: services is not a mapping", types.ErrCorruptManifest)
	}

	m := &Manifest{doc: &doc}
	m.normalize()
	return m, nil
}

// Load reads the manifest at path. A missing file yields an empty manifest.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Empty(), nil
		}
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Save serializes the whole manifest to path
func (m *Manifest) Save(path string) error {
	data, err := m.Bytes()
	if err != nil {
		return err
	}
	if err := volume.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("%w: failed to write manifest %s: %w", types.ErrPersistence, path, err)
	}
	return nil
}

// Bytes encodes the manifest as YAML
func (m *Manifest) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m.doc); err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	return buf.Bytes(), nil
}

// HasService reports whether a service with the given key exists
func (m *Manifest) HasService(name string) bool {
	return mappingValue(m.services(), name) != nil
}

// ServiceNames returns the service keys in document order
func (m *Manifest) ServiceNames() []string {
	services := m.services()
	names := make([]string, 0, len(services.Content)/2)
	for i := 0; i+1 < len(services.Content); i += 2 {
		names = append(names, services.Content[i].Value)
	}
	return names
}

// Service decodes the named service
func (m *Manifest) Service(name string) (*Service, error) {
	node := mappingValue(m.services(), name)
	if node == nil {
		return nil, fmt.Errorf("%w: service %s", types.ErrNodeNotFound, name)
	}
	var svc Service
	if err := node.Decode(&svc); err != nil {
		return nil, fmt.Errorf("%w: service %s: %v", types.ErrCorruptManifest, name, err)
	}
	return &svc, nil
}

// UpsertNodeService inserts or overwrites the service keyed by svc.Name.
// Host ports are drawn from ports, avoiding every port already published by
// the other services of the manifest.
func (m *Manifest) UpsertNodeService(svc NodeService, ports *network.PortAllocator) (*PortAssignment, error) {
	if svc.Name == "" {
		return nil, fmt.Errorf("%w: service name is required", types.ErrValidation)
	}
	if svc.Image == "" {
		svc.Image = DefaultImage
	}
	if svc.P2PBase == 0 {
		svc.P2PBase = network.DefaultP2PBase
	}
	if svc.RPCBase == 0 {
		svc.RPCBase = network.DefaultRPCBase
	}

	mounts, err := nodeMounts(svc.Paths)
	if err != nil {
		return nil, err
	}

	used := m.PublishedPorts(svc.Name)
	var assigned PortAssignment
	if assigned.TCP, err = ports.Allocate(svc.P2PBase, used); err != nil {
		return nil, err
	}
	if assigned.UDP, err = ports.Allocate(svc.P2PBase, used); err != nil {
		return nil, err
	}
	if assigned.RPC, err = ports.Allocate(svc.RPCBase, used); err != nil {
		return nil, err
	}

	entry := Service{
		Image:      svc.Image,
		Entrypoint: Entrypoint(svc.Flags),
		Volumes:    mounts,
		Ports: []string{
			fmt.Sprintf("%d:%d", assigned.TCP, P2PPort),
			fmt.Sprintf("%d:%d/udp", assigned.UDP, P2PPort),
			fmt.Sprintf("%d:%d", assigned.RPC, RPCPort),
		},
		Networks: []string{BridgeNetwork},
	}
	if err := m.setService(svc.Name, entry); err != nil {
		return nil, err
	}
	return &assigned, nil
}

// RemoveNodeService deletes the named service. A missing key is a no-op.
func (m *Manifest) RemoveNodeService(name string) bool {
	return deleteMappingKey(m.services(), name)
}

// PublishedPorts returns the host ports published by every service except
// the excluded ones.
func (m *Manifest) PublishedPorts(exclude ...string) map[int]struct{} {
	skip := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		skip[name] = true
	}

	used := make(map[int]struct{})
	services := m.services()
	for i := 0; i+1 < len(services.Content); i += 2 {
		if skip[services.Content[i].Value] {
			continue
		}
		portsNode := mappingValue(services.Content[i+1], "ports")
		if portsNode == nil || portsNode.Kind != yaml.SequenceNode {
			continue
		}
		for _, p := range portsNode.Content {
			if port, ok := hostPort(p); ok {
				used[port] = struct{}{}
			}
		}
	}
	return used
}

// Entrypoint builds the node container entrypoint: initialize the data
// directory from the mounted genesis document, then launch geth.
func Entrypoint(flags []string) []string {
	return []string{
		"sh", "-c",
		fmt.Sprintf("geth init --datadir %s %s && geth %s",
			ContainerDataDir, ContainerGenesisFile, strings.Join(flags, " ")),
	}
}

// BootnodeCommand builds the bootnode command line
func BootnodeCommand(hostIP string) string {
	return fmt.Sprintf("bootnode --nodekey %s --addr 0.0.0.0:%d --nat extip:%s --verbosity 9",
		ContainerBootKey, P2PPort, hostIP)
}

func (m *Manifest) setBootnode(spec BootnodeSpec) error {
	if spec.Image == "" {
		spec.Image = DefaultImage
	}
	if spec.Port == 0 {
		spec.Port = P2PPort
	}
	keyDir, err := volume.HostPath(spec.KeyDir)
	if err != nil {
		return err
	}

	return m.setService(BootnodeService, Service{
		Image:   spec.Image,
		Command: BootnodeCommand(spec.HostIP),
		Volumes: []BindMount{{Type: "bind", Source: keyDir, Target: ContainerDataDir}},
		Ports: []string{
			fmt.Sprintf("%d:%d", spec.Port, P2PPort),
			fmt.Sprintf("%d:%d/udp", spec.Port, P2PPort),
		},
		Networks: []string{BridgeNetwork},
	})
}

func (m *Manifest) setService(name string, svc Service) error {
	var node yaml.Node
	if err := node.Encode(svc); err != nil {
		return fmt.Errorf("failed to encode service %s: %w", name, err)
	}
	setMappingValue(m.services(), name, &node)
	return nil
}

func nodeMounts(paths NodePaths) ([]BindMount, error) {
	pairs := []struct{ source, target string }{
		{paths.NodeDir, ContainerDataDir},
		{paths.PasswordFile, ContainerPasswordFile},
		{paths.GenesisFile, ContainerGenesisFile},
	}

	mounts := make([]BindMount, 0, len(pairs))
	for _, p := range pairs {
		if p.source == "" {
			return nil, fmt.Errorf("%w: mount source for %s is required", types.ErrValidation, p.target)
		}
		source, err := volume.HostPath(p.source)
		if err != nil {
			return nil, err
		}
		mounts = append(mounts, BindMount{Type: "bind", Source: source, Target: p.target})
	}
	return mounts, nil
}

// normalize makes sure the services mapping and the bridge network
// declaration exist.
func (m *Manifest) normalize() {
	root := m.doc.Content[0]

	if mappingValue(root, "services") == nil {
		setMappingValue(root, "services", &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"})
	}

	networks := mappingValue(root, "networks")
	if networks == nil || networks.Kind != yaml.MappingNode {
		networks = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		setMappingValue(root, "networks", networks)
	}
	if mappingValue(networks, BridgeNetwork) == nil {
		setMappingValue(networks, BridgeNetwork, &yaml.Node{
			Kind: yaml.MappingNode,
			Tag:  "!!map",
			Content: []*yaml.Node{
				scalar("driver"),
				scalar("bridge"),
			},
		})
	}
}

func (m *Manifest) services() *yaml.Node {
	return mappingValue(m.doc.Content[0], "services")
}

// hostPort extracts the published host port from a short ("8545:8545/tcp")
// or long ({published: 8545}) port entry.
func hostPort(n *yaml.Node) (int, bool) {
	switch n.Kind {
	case yaml.ScalarNode:
		spec := strings.SplitN(n.Value, "/", 2)[0]
		parts := strings.Split(spec, ":")
		if len(parts) < 2 {
			return 0, false
		}
		port, err := strconv.Atoi(parts[len(parts)-2])
		return port, err == nil
	case yaml.MappingNode:
		published := mappingValue(n, "published")
		if published == nil {
			return 0, false
		}
		port, err := strconv.Atoi(published.Value)
		return port, err == nil
	}
	return 0, false
}

func scalar(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}

func mappingValue(m *yaml.Node, key string) *yaml.Node {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func setMappingValue(m *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content[i+1] = value
			return
		}
	}
	m.Content = append(m.Content, scalar(key), value)
}

func deleteMappingKey(m *yaml.Node, key string) bool {
	if m == nil {
		return false
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content = append(m.Content[:i], m.Content[i+2:]...)
			return true
		}
	}
	return false
}

// SortedServiceNames returns the service keys sorted, bootnode excluded
func (m *Manifest) SortedServiceNames() []string {
	var names []string
	for _, name := range m.ServiceNames() {
		if name != BootnodeService {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
