package manager

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/cuemby/poanet/pkg/events"
	"github.com/cuemby/poanet/pkg/genesis"
	"github.com/cuemby/poanet/pkg/geth"
	"github.com/cuemby/poanet/pkg/log"
	"github.com/cuemby/poanet/pkg/manifest"
	"github.com/cuemby/poanet/pkg/metrics"
	"github.com/cuemby/poanet/pkg/network"
	"github.com/cuemby/poanet/pkg/runtime"
	"github.com/cuemby/poanet/pkg/storage"
	"github.com/cuemby/poanet/pkg/types"
	"github.com/cuemby/poanet/pkg/volume"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Manager drives the lifecycle of networks and their nodes. It keeps the
// roster, each network's manifest and each network's genesis document
// consistent with one another.
type Manager struct {
	driver  *volume.LocalDriver
	store   storage.Store
	runtime runtime.Runtime
	keygen  geth.Keygen
	ports   *network.PortAllocator
	events  events.Publisher

	image        string
	hostIP       string
	probeHost    string
	p2pBase      int
	rpcBase      int
	verbosity    int
	pollInterval time.Duration
	startTimeout time.Duration

	locks *networkLocks
}

// Config holds configuration for creating a Manager
type Config struct {
	Driver  *volume.LocalDriver
	Store   storage.Store
	Runtime runtime.Runtime
	Keygen  geth.Keygen

	// Optional
	Ports        *network.PortAllocator
	Events       events.Publisher
	Image        string
	HostIP       string
	ProbeHost    string
	P2PBase      int
	RPCBase      int
	Verbosity    int
	PollInterval time.Duration
	StartTimeout time.Duration
}

// NewManager creates a new Manager instance
func NewManager(cfg *Config) (*Manager, error) {
	if cfg.Driver == nil || cfg.Store == nil || cfg.Runtime == nil || cfg.Keygen == nil {
		return nil, fmt.Errorf("%w: driver, store, runtime and keygen are required", types.ErrValidation)
	}

	m := &Manager{
		driver:       cfg.Driver,
		store:        cfg.Store,
		runtime:      cfg.Runtime,
		keygen:       cfg.Keygen,
		ports:        cfg.Ports,
		events:       cfg.Events,
		image:        cfg.Image,
		hostIP:       cfg.HostIP,
		probeHost:    cfg.ProbeHost,
		p2pBase:      cfg.P2PBase,
		rpcBase:      cfg.RPCBase,
		verbosity:    cfg.Verbosity,
		pollInterval: cfg.PollInterval,
		startTimeout: cfg.StartTimeout,
		locks:        newNetworkLocks(),
	}

	if m.ports == nil {
		m.ports = network.NewPortAllocator(nil)
	}
	if m.events == nil {
		m.events = (*events.Broker)(nil)
	}
	if m.image == "" {
		m.image = manifest.DefaultImage
	}
	if m.probeHost == "" {
		m.probeHost = "127.0.0.1"
	}
	if m.p2pBase == 0 {
		m.p2pBase = network.DefaultP2PBase
	}
	if m.rpcBase == 0 {
		m.rpcBase = network.DefaultRPCBase
	}
	if m.verbosity == 0 {
		m.verbosity = geth.DefaultVerbosity
	}
	if m.pollInterval <= 0 {
		m.pollInterval = DefaultPollInterval
	}
	if m.startTimeout <= 0 {
		m.startTimeout = DefaultStartTimeout
	}

	return m, nil
}

// ListNetworks returns the whole roster
func (m *Manager) ListNetworks() ([]*types.Network, error) {
	return m.store.Load()
}

// GetNetwork returns one network by exact name
func (m *Manager) GetNetwork(name string) (*types.Network, error) {
	return m.store.FindByName(name)
}

// Genesis returns the stored genesis document of a network
func (m *Manager) Genesis(name string) (*genesis.Document, error) {
	if _, err := m.store.FindByName(name); err != nil {
		return nil, err
	}
	return genesis.Read(m.driver.GenesisPath(name))
}

// NetworkStatus returns the services of the network in running state, as
// reported by the runtime.
func (m *Manager) NetworkStatus(ctx context.Context, name string) (*types.NetworkStatus, error) {
	if _, err := m.store.FindByName(name); err != nil {
		return nil, err
	}

	services, err := m.runtime.RunningServices(ctx, m.project(name))
	if err != nil {
		return nil, fmt.Errorf("%w: network %s: %w", types.ErrStatusQuery, name, err)
	}
	return &types.NetworkStatus{Network: name, RunningServices: services}, nil
}

// ListStatuses returns the running services of every network. Networks are
// queried concurrently; the first failure aborts the rest.
func (m *Manager) ListStatuses(ctx context.Context) ([]*types.NetworkStatus, error) {
	networks, err := m.store.Load()
	if err != nil {
		return nil, err
	}

	statuses := make([]*types.NetworkStatus, len(networks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, n := range networks {
		g.Go(func() error {
			services, err := m.runtime.RunningServices(gctx, m.project(n.Name))
			if err != nil {
				return fmt.Errorf("%w: network %s: %w", types.ErrStatusQuery, n.Name, err)
			}
			statuses[i] = &types.NetworkStatus{Network: n.Name, RunningServices: services}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return statuses, nil
}

func (m *Manager) project(network string) runtime.Project {
	return runtime.Project{
		Name: runtime.ProjectName(network),
		File: m.driver.ManifestPath(network),
	}
}

// operation carries the shared bookkeeping of one lifecycle call
type operation struct {
	name   string
	id     string
	logger zerolog.Logger
	timer  *metrics.Timer
}

func (m *Manager) begin(name, network, node string) *operation {
	id := uuid.NewString()
	var logger zerolog.Logger
	if node != "" {
		logger = log.WithNode(network, node)
	} else {
		logger = log.WithNetwork(network)
	}
	logger = logger.With().Str("operation", name).Str("op_id", id).Logger()
	logger.Info().Msg("Operation started")

	return &operation{name: name, id: id, logger: logger, timer: metrics.NewTimer()}
}

// end records metrics, logs the outcome and publishes either the success
// event or operation.failed.
func (m *Manager) end(op *operation, err error, success events.EventType, message string, metadata map[string]string) {
	metrics.ObserveOperation(op.name, op.timer, err)

	if metadata == nil {
		metadata = map[string]string{}
	}
	metadata["op_id"] = op.id
	metadata["operation"] = op.name

	if err != nil {
		op.logger.Error().Err(err).Dur("duration", op.timer.Duration()).Msg("Operation failed")
		metadata["error"] = err.Error()
		m.events.Publish(events.New(events.EventOperationFailed, op.name+" failed: "+err.Error(), metadata))
		return
	}

	op.logger.Info().Dur("duration", op.timer.Duration()).Msg("Operation completed")
	m.events.Publish(events.New(success, message, metadata))
}

// validNameRe matches names usable as a directory, a compose service key and
// a compose project name without rewriting.
var validNameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// validateName rejects names that cannot be used as a directory or
// compose service key.
func validateName(kind, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: %s name is required", types.ErrValidation, kind)
	}
	if name == volume.RosterFile || !validNameRe.MatchString(name) {
		return fmt.Errorf("%w: invalid %s name %q: use letters, digits, '-' and '_'", types.ErrValidation, kind, name)
	}
	return nil
}

// replaceNetwork swaps the roster record of updated.Name for updated
func (m *Manager) replaceNetwork(updated *types.Network) error {
	return m.store.Update(func(networks []*types.Network) ([]*types.Network, error) {
		for i, n := range networks {
			if n.Name == updated.Name {
				networks[i] = updated
				return networks, nil
			}
		}
		return nil, fmt.Errorf("%w: %s", types.ErrNetworkNotFound, updated.Name)
	})
}
