package manager

import (
	"context"
	"fmt"
	"math/big"
	"net"
	"strconv"

	"github.com/cuemby/poanet/pkg/events"
	"github.com/cuemby/poanet/pkg/genesis"
	"github.com/cuemby/poanet/pkg/geth"
	"github.com/cuemby/poanet/pkg/health"
	"github.com/cuemby/poanet/pkg/manifest"
	"github.com/cuemby/poanet/pkg/runtime"
	"github.com/cuemby/poanet/pkg/types"
)

// AddNodeRequest holds the parameters of a new node
type AddNodeRequest struct {
	Network        string
	Node           string
	Password       string
	Role           types.NodeRole
	InitialBalance string
}

func (r *AddNodeRequest) validate() error {
	if err := validateName("node", r.Node); err != nil {
		return err
	}
	if r.Node == manifest.BootnodeService {
		return fmt.Errorf("%w: node name %q is reserved", types.ErrValidation, r.Node)
	}
	if r.Password == "" {
		return fmt.Errorf("%w: password is required", types.ErrValidation)
	}
	role, err := types.ParseRole(string(r.Role))
	if err != nil {
		return err
	}
	r.Role = role
	if r.Role == types.NodeRoleBootnode {
		return fmt.Errorf("%w: a network has exactly one bootnode", types.ErrValidation)
	}
	if r.InitialBalance != "" {
		balance, ok := new(big.Int).SetString(r.InitialBalance, 10)
		if !ok || balance.Sign() < 0 {
			return fmt.Errorf("%w: initial balance %q is not a non-negative decimal", types.ErrValidation, r.InitialBalance)
		}
	}
	return nil
}

// AddNode provisions a node and starts its container. The steps run in
// order: node directory and password, account key, alloc and authority set,
// genesis regeneration, manifest entry, container start, host port lookup,
// roster write. Nothing already written is rolled back on failure.
func (m *Manager) AddNode(ctx context.Context, req AddNodeRequest) (result *types.Node, err error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	unlock := m.locks.lock(req.Network)
	defer unlock()

	op := m.begin("add_node", req.Network, req.Node)
	defer func() {
		m.end(op, err, events.EventNodeAdded, "node "+req.Node+" added to "+req.Network, map[string]string{
			"network": req.Network,
			"node":    req.Node,
			"role":    string(req.Role),
		})
	}()

	current, err := m.store.FindByName(req.Network)
	if err != nil {
		return nil, err
	}

	// Existence is decided by the live manifest; a roster-only entry means a
	// previous operation stopped half way.
	manifestPath := m.driver.ManifestPath(req.Network)
	mf, err := manifest.Load(manifestPath)
	if err != nil {
		return nil, err
	}
	if mf.HasService(req.Node) {
		return nil, fmt.Errorf("%w: %s in network %s", types.ErrNodeExists, req.Node, req.Network)
	}
	if current.FindNode(req.Node) != nil {
		return nil, fmt.Errorf("%w: node %s is in the roster of %s but not in its manifest", types.ErrInconsistentState, req.Node, req.Network)
	}

	fail := func(step string, cause error) error {
		return fmt.Errorf("%w: network %s node %s: %s: %w", types.ErrNodeProvisioning, req.Network, req.Node, step, cause)
	}

	if err := m.driver.CreateNode(req.Network, req.Node, req.Password); err != nil {
		return nil, fail("create node directory", err)
	}

	nodeDir := m.driver.NodePath(req.Network, req.Node)
	if err := m.keygen.NewAccount(ctx, nodeDir, m.driver.PasswordPath(req.Network, req.Node)); err != nil {
		return nil, fail("create account", err)
	}
	keyfile, err := geth.FindKeyfile(m.driver.KeystorePath(req.Network, req.Node))
	if err != nil {
		return nil, fail("locate keyfile", err)
	}
	address, err := geth.ReadKeyfileAddress(keyfile)
	if err != nil {
		return nil, fail("read keyfile", err)
	}
	op.logger.Debug().Str("address", address).Msg("Account created")

	node := &types.Node{Name: req.Node, Address: address, Role: req.Role}
	updated := current.Clone()
	if req.InitialBalance != "" {
		if updated.Alloc == nil {
			updated.Alloc = make(map[string]types.Funds)
		}
		updated.Alloc[address] = types.Funds{Balance: req.InitialBalance}
	}
	updated.Nodes = append(updated.Nodes, node)

	// Full regeneration: the authority encoding depends on the whole set
	doc, err := genesis.FromNetwork(updated)
	if err != nil {
		return nil, fail("build genesis", err)
	}
	if err := genesis.Write(m.driver.GenesisPath(req.Network), doc); err != nil {
		return nil, fail("write genesis", err)
	}

	flags, err := geth.Flags(req.Role, geth.FlagParams{
		NetworkID: current.ChainID,
		Bootnodes: current.BootnodeEnode,
		Address:   address,
		Verbosity: m.verbosity,
	})
	if err != nil {
		return nil, fail("build flags", err)
	}

	assigned, err := mf.UpsertNodeService(manifest.NodeService{
		Name:  req.Node,
		Image: m.image,
		Flags: flags,
		Paths: manifest.NodePaths{
			NodeDir:      nodeDir,
			PasswordFile: m.driver.PasswordPath(req.Network, req.Node),
			GenesisFile:  m.driver.GenesisPath(req.Network),
		},
		P2PBase: m.p2pBase,
		RPCBase: m.rpcBase,
	}, m.ports)
	if err != nil {
		return nil, fail("build service", err)
	}
	if err := mf.Save(manifestPath); err != nil {
		return nil, fail("write manifest", err)
	}

	project := m.project(req.Network)
	if err := m.runtime.Up(ctx, project, req.Node); err != nil {
		return nil, fail("start container", err)
	}

	info, err := m.runtime.Inspect(ctx, project, req.Node)
	if err != nil {
		return nil, fail("inspect container", err)
	}
	port, ok := info.HostPort(runtime.PortKey(manifest.P2PPort, "tcp"))
	if !ok {
		port = assigned.TCP
	}
	node.Port = port

	if err := m.replaceNetwork(updated); err != nil {
		return nil, fail("write roster", err)
	}

	op.logger.Info().Int("port", port).Str("address", address).Msg("Node started")
	cp := *node
	return &cp, nil
}

// RemoveNode tears a node down and regenerates the genesis from the
// remaining signers. The container and manifest entry go first so a crash
// leaves an orphaned roster entry, which a second RemoveNode cleans up.
func (m *Manager) RemoveNode(ctx context.Context, networkName, nodeName string) (err error) {
	unlock := m.locks.lock(networkName)
	defer unlock()

	op := m.begin("remove_node", networkName, nodeName)
	defer func() {
		m.end(op, err, events.EventNodeRemoved, "node "+nodeName+" removed from "+networkName, map[string]string{
			"network": networkName,
			"node":    nodeName,
		})
	}()

	current, err := m.store.FindByName(networkName)
	if err != nil {
		return err
	}

	manifestPath := m.driver.ManifestPath(networkName)
	mf, err := manifest.Load(manifestPath)
	if err != nil {
		return err
	}

	rosterNode := current.FindNode(nodeName)
	inManifest := mf.HasService(nodeName)
	switch {
	case nodeName == manifest.BootnodeService || (rosterNode != nil && rosterNode.Role == types.NodeRoleBootnode):
		return fmt.Errorf("%w: the bootnode of %s cannot be removed", types.ErrValidation, networkName)
	case rosterNode == nil && !inManifest:
		return fmt.Errorf("%w: %s in network %s", types.ErrNodeNotFound, nodeName, networkName)
	case rosterNode == nil:
		return fmt.Errorf("%w: node %s is in the manifest of %s but not in its roster", types.ErrInconsistentState, nodeName, networkName)
	}

	if inManifest {
		if err := m.runtime.Remove(ctx, m.project(networkName), nodeName); err != nil {
			return fmt.Errorf("%w: network %s node %s: remove container: %w", types.ErrContainerOperation, networkName, nodeName, err)
		}
		mf.RemoveNodeService(nodeName)
		if err := mf.Save(manifestPath); err != nil {
			return fmt.Errorf("network %s node %s: write manifest: %w", networkName, nodeName, err)
		}
	} else {
		op.logger.Warn().Msg("Node missing from manifest, skipping container teardown")
	}

	updated := current.Clone()
	removed, _ := updated.RemoveNode(nodeName)
	if updated.Alloc != nil {
		delete(updated.Alloc, removed.Address)
		if len(updated.Alloc) == 0 {
			updated.Alloc = nil
		}
	}

	doc, err := genesis.FromNetwork(updated)
	if err != nil {
		return fmt.Errorf("network %s node %s: build genesis: %w", networkName, nodeName, err)
	}
	if err := genesis.Write(m.driver.GenesisPath(networkName), doc); err != nil {
		return fmt.Errorf("network %s node %s: write genesis: %w", networkName, nodeName, err)
	}

	if err := m.replaceNetwork(updated); err != nil {
		return fmt.Errorf("network %s node %s: write roster: %w", networkName, nodeName, err)
	}

	if err := m.driver.DeleteNode(networkName, nodeName); err != nil {
		return fmt.Errorf("%w: network %s node %s: delete node directory: %w", types.ErrPersistence, networkName, nodeName, err)
	}
	return nil
}

// StartNode starts one service of the network
func (m *Manager) StartNode(ctx context.Context, networkName, nodeName string) (err error) {
	unlock := m.locks.lock(networkName)
	defer unlock()

	op := m.begin("start_node", networkName, nodeName)
	defer func() {
		m.end(op, err, events.EventNodeStarted, "node "+nodeName+" started", map[string]string{
			"network": networkName,
			"node":    nodeName,
		})
	}()

	if err := m.requireService(networkName, nodeName); err != nil {
		return err
	}
	if err := m.runtime.Up(ctx, m.project(networkName), nodeName); err != nil {
		return fmt.Errorf("%w: network %s node %s: start: %w", types.ErrContainerOperation, networkName, nodeName, err)
	}
	return nil
}

// StopNode stops one service of the network
func (m *Manager) StopNode(ctx context.Context, networkName, nodeName string) (err error) {
	unlock := m.locks.lock(networkName)
	defer unlock()

	op := m.begin("stop_node", networkName, nodeName)
	defer func() {
		m.end(op, err, events.EventNodeStopped, "node "+nodeName+" stopped", map[string]string{
			"network": networkName,
			"node":    nodeName,
		})
	}()

	if err := m.requireService(networkName, nodeName); err != nil {
		return err
	}
	if err := m.runtime.Stop(ctx, m.project(networkName), nodeName); err != nil {
		return fmt.Errorf("%w: network %s node %s: stop: %w", types.ErrContainerOperation, networkName, nodeName, err)
	}
	return nil
}

// NodeLogs returns the container logs of a node
func (m *Manager) NodeLogs(ctx context.Context, networkName, nodeName string) (string, error) {
	if err := m.requireService(networkName, nodeName); err != nil {
		return "", err
	}
	logs, err := m.runtime.Logs(ctx, m.project(networkName), nodeName)
	if err != nil {
		return "", fmt.Errorf("%w: network %s node %s: logs: %w", types.ErrContainerOperation, networkName, nodeName, err)
	}
	return logs, nil
}

// NodeHealth probes a node through its published ports: a TCP dial of the
// devp2p port and a JSON-RPC query of the rpc port. Failed probes are part of
// the report; only a missing node or an uninspectable container is an error.
// The bootnode has no TCP listener and is judged by its container state.
func (m *Manager) NodeHealth(ctx context.Context, networkName, nodeName string) (*health.NodeReport, error) {
	if err := m.requireService(networkName, nodeName); err != nil {
		return nil, err
	}
	info, err := m.runtime.Inspect(ctx, m.project(networkName), nodeName)
	if err != nil {
		return nil, fmt.Errorf("%w: network %s node %s: inspect: %w", types.ErrContainerOperation, networkName, nodeName, err)
	}

	// The bootnode only serves discovery over UDP, so it gets no TCP probe
	checkers := make(map[string]health.Checker)
	if port, ok := info.HostPort(runtime.PortKey(manifest.P2PPort, "tcp")); ok && nodeName != manifest.BootnodeService {
		checkers["p2p"] = health.NewTCPChecker(net.JoinHostPort(m.probeHost, strconv.Itoa(port)))
	}
	if port, ok := info.HostPort(runtime.PortKey(manifest.RPCPort, "tcp")); ok {
		checkers["rpc"] = health.NewRPCChecker("http://" + net.JoinHostPort(m.probeHost, strconv.Itoa(port)))
	}
	return health.Probe(ctx, networkName, nodeName, info.State, checkers), nil
}

// requireService checks the network is in the roster and the node has a
// service in its manifest.
func (m *Manager) requireService(networkName, nodeName string) error {
	if _, err := m.store.FindByName(networkName); err != nil {
		return err
	}
	mf, err := manifest.Load(m.driver.ManifestPath(networkName))
	if err != nil {
		return err
	}
	if !mf.HasService(nodeName) {
		return fmt.Errorf("%w: %s in network %s", types.ErrNodeNotFound, nodeName, networkName)
	}
	return nil
}
