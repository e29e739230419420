package manager

import (
	"context"
	"fmt"
	"strings"

	"github.com/cuemby/poanet/pkg/events"
	"github.com/cuemby/poanet/pkg/genesis"
	"github.com/cuemby/poanet/pkg/manifest"
	"github.com/cuemby/poanet/pkg/network"
	"github.com/cuemby/poanet/pkg/runtime"
	"github.com/cuemby/poanet/pkg/types"
)

// CreateNetworkRequest holds the parameters of a new network
type CreateNetworkRequest struct {
	Name      string
	ChainID   int64
	BlockTime uint64
}

// CreateNetwork provisions a network with its bootnode: directories, boot
// key, initial genesis, the bootnode-only manifest and the running bootnode
// container. On failure nothing is rolled back, so the partial state can be
// inspected.
func (m *Manager) CreateNetwork(ctx context.Context, req CreateNetworkRequest) (result *types.Network, err error) {
	if err := validateName("network", req.Name); err != nil {
		return nil, err
	}
	if runtime.ProjectName(req.Name) == "" {
		return nil, fmt.Errorf("%w: network name %q has no usable project name", types.ErrValidation, req.Name)
	}
	if req.ChainID <= 0 {
		return nil, fmt.Errorf("%w: chain id must be positive, got %d", types.ErrValidation, req.ChainID)
	}

	unlock := m.locks.lock(req.Name)
	defer unlock()

	op := m.begin("create_network", req.Name, "")
	defer func() {
		m.end(op, err, events.EventNetworkCreated, "network "+req.Name+" created", map[string]string{
			"network": req.Name,
		})
	}()

	networks, err := m.store.Load()
	if err != nil {
		return nil, err
	}
	if err := checkUnique(networks, req.Name); err != nil {
		return nil, err
	}

	fail := func(step string, cause error) error {
		return fmt.Errorf("%w: network %s: %s: %w", types.ErrNetworkProvisioning, req.Name, step, cause)
	}

	if err := m.driver.CreateNetwork(req.Name); err != nil {
		return nil, fail("create directory", err)
	}

	bootDir := m.driver.BootnodePath(req.Name)
	pubkey, err := m.keygen.GenerateBootnodeKey(ctx, bootDir)
	if err != nil {
		return nil, fail("generate bootnode key", err)
	}
	op.logger.Debug().Str("pubkey", pubkey).Msg("Bootnode key generated")

	hostIP, err := m.resolveHostIP()
	if err != nil {
		return nil, fail("resolve host ip", err)
	}

	mf, err := manifest.New(manifest.BootnodeSpec{
		Image:  m.image,
		KeyDir: bootDir,
		HostIP: hostIP,
		Port:   manifest.P2PPort,
	})
	if err != nil {
		return nil, fail("build manifest", err)
	}
	if err := mf.Save(m.driver.ManifestPath(req.Name)); err != nil {
		return nil, fail("write manifest", err)
	}

	// The bootnode is not a signer, so the initial genesis has no authorities
	record := &types.Network{
		Name:      req.Name,
		ChainID:   req.ChainID,
		BlockTime: req.BlockTime,
		Nodes:     []*types.Node{},
	}
	doc, err := genesis.FromNetwork(record)
	if err != nil {
		return nil, fail("build genesis", err)
	}
	if err := genesis.Write(m.driver.GenesisPath(req.Name), doc); err != nil {
		return nil, fail("write genesis", err)
	}

	project := m.project(req.Name)
	if err := m.runtime.Up(ctx, project, manifest.BootnodeService); err != nil {
		return nil, fail("start bootnode", err)
	}

	info, err := m.waitRunning(ctx, project, manifest.BootnodeService)
	if err != nil {
		return nil, fail("wait for bootnode", err)
	}

	enode, err := genesis.Enode(pubkey, info.IPAddress, manifest.P2PPort)
	if err != nil {
		return nil, fail("build enode", err)
	}
	record.BootnodeEnode = enode
	record.Nodes = append(record.Nodes, &types.Node{
		Name:    manifest.BootnodeService,
		Port:    manifest.P2PPort,
		Address: pubkey,
		Role:    types.NodeRoleBootnode,
	})

	err = m.store.Update(func(networks []*types.Network) ([]*types.Network, error) {
		if err := checkUnique(networks, record.Name); err != nil {
			return nil, err
		}
		return append(networks, record), nil
	})
	if err != nil {
		return nil, err
	}

	op.logger.Info().Str("enode", enode).Msg("Network created")
	return record.Clone(), nil
}

// StartNetwork starts every service of the network
func (m *Manager) StartNetwork(ctx context.Context, name string) (err error) {
	unlock := m.locks.lock(name)
	defer unlock()

	op := m.begin("start_network", name, "")
	defer func() {
		m.end(op, err, events.EventNetworkStarted, "network "+name+" started", map[string]string{"network": name})
	}()

	if _, err := m.store.FindByName(name); err != nil {
		return err
	}
	if err := m.runtime.StartProject(ctx, m.project(name)); err != nil {
		return fmt.Errorf("%w: network %s: start: %w", types.ErrContainerOperation, name, err)
	}
	return nil
}

// StopNetwork stops every service of the network
func (m *Manager) StopNetwork(ctx context.Context, name string) (err error) {
	unlock := m.locks.lock(name)
	defer unlock()

	op := m.begin("stop_network", name, "")
	defer func() {
		m.end(op, err, events.EventNetworkStopped, "network "+name+" stopped", map[string]string{"network": name})
	}()

	if _, err := m.store.FindByName(name); err != nil {
		return err
	}
	if err := m.runtime.StopProject(ctx, m.project(name)); err != nil {
		return fmt.Errorf("%w: network %s: stop: %w", types.ErrContainerOperation, name, err)
	}
	return nil
}

// RemoveNetwork tears the network down. Only names that resolve to a roster
// entry, compared case-insensitively, are touched, and the stored name is
// used for the project and the directory. Container teardown and directory
// deletion are best-effort and only logged; a failed roster write is the
// only error returned.
func (m *Manager) RemoveNetwork(ctx context.Context, name string) (err error) {
	if err := validateName("network", name); err != nil {
		return err
	}

	unlock := m.locks.lock(name)
	defer unlock()

	op := m.begin("remove_network", name, "")
	defer func() {
		m.end(op, err, events.EventNetworkRemoved, "network "+name+" removed", map[string]string{"network": name})
	}()

	networks, err := m.store.Load()
	if err != nil {
		return err
	}
	var stored []string
	for _, n := range networks {
		if strings.EqualFold(n.Name, name) {
			stored = append(stored, n.Name)
		}
	}
	if len(stored) == 0 {
		op.logger.Warn().Msg("Network was not in the roster, nothing to remove")
		return nil
	}

	for _, s := range stored {
		if err := m.runtime.Down(ctx, m.project(s)); err != nil {
			op.logger.Warn().Err(err).Str("stored_name", s).Msg("Failed to tear down containers")
		}
		if validateName("network", s) != nil {
			op.logger.Warn().Str("stored_name", s).Msg("Skipping directory deletion of unsafe network name")
			continue
		}
		if err := m.driver.DeleteNetwork(s); err != nil {
			op.logger.Warn().Err(err).Str("stored_name", s).Msg("Failed to delete network directory")
		}
	}

	return m.store.Update(func(networks []*types.Network) ([]*types.Network, error) {
		kept := networks[:0]
		for _, n := range networks {
			if !strings.EqualFold(n.Name, name) {
				kept = append(kept, n)
			}
		}
		return kept, nil
	})
}

// checkUnique rejects a name that equals an existing one case-insensitively
// or maps onto the same compose project.
func checkUnique(networks []*types.Network, name string) error {
	project := runtime.ProjectName(name)
	for _, n := range networks {
		if strings.EqualFold(n.Name, name) {
			return fmt.Errorf("%w: %s", types.ErrNetworkExists, n.Name)
		}
		if runtime.ProjectName(n.Name) == project {
			return fmt.Errorf("%w: %s shares compose project %q", types.ErrNetworkExists, n.Name, project)
		}
	}
	return nil
}

func (m *Manager) resolveHostIP() (string, error) {
	if m.hostIP != "" {
		return m.hostIP, nil
	}
	return network.LocalIP()
}
