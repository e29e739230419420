package reconciler

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/cuemby/poanet/pkg/events"
	"github.com/cuemby/poanet/pkg/log"
	"github.com/cuemby/poanet/pkg/manifest"
	"github.com/cuemby/poanet/pkg/metrics"
	"github.com/cuemby/poanet/pkg/runtime"
	"github.com/cuemby/poanet/pkg/storage"
	"github.com/cuemby/poanet/pkg/types"
	"github.com/cuemby/poanet/pkg/volume"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultInterval is the period between drift checks
const DefaultInterval = 30 * time.Second

// Drift is the comparison of one network's roster with its manifest
type Drift struct {
	Network           string   `json:"networkName"`
	MissingInManifest []string `json:"missingInManifest"`
	MissingInRoster   []string `json:"missingInRoster"`
	RunningServices   []string `json:"runningServices"`
}

// Drifted reports whether roster and manifest disagree
func (d *Drift) Drifted() bool {
	return len(d.MissingInManifest) > 0 || len(d.MissingInRoster) > 0
}

// Count is the number of nodes present on only one side
func (d *Drift) Count() int {
	return len(d.MissingInManifest) + len(d.MissingInRoster)
}

// Config holds configuration for creating a Reconciler
type Config struct {
	Store    storage.Store
	Driver   *volume.LocalDriver
	Runtime  runtime.Runtime
	Events   events.Publisher
	Interval time.Duration
}

// Reconciler periodically compares each network's roster entry with its
// manifest and running services. It only reports; it never repairs.
type Reconciler struct {
	store    storage.Store
	driver   *volume.LocalDriver
	runtime  runtime.Runtime
	events   events.Publisher
	interval time.Duration
	logger   zerolog.Logger

	mu       sync.RWMutex
	last     []*Drift
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewReconciler creates a new reconciler
func NewReconciler(cfg *Config) *Reconciler {
	r := &Reconciler{
		store:    cfg.Store,
		driver:   cfg.Driver,
		runtime:  cfg.Runtime,
		events:   cfg.Events,
		interval: cfg.Interval,
		logger:   log.WithComponent("reconciler"),
		stopCh:   make(chan struct{}),
	}
	if r.interval <= 0 {
		r.interval = DefaultInterval
	}
	if r.events == nil {
		r.events = (*events.Broker)(nil)
	}
	return r
}

// Start begins the reconciliation loop
func (r *Reconciler) Start(ctx context.Context) {
	go r.run(ctx)
}

// Stop stops the reconciler
func (r *Reconciler) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

func (r *Reconciler) run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if _, err := r.Check(ctx); err != nil {
			r.logger.Error().Err(err).Msg("Drift check failed")
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		}
	}
}

// Last returns the result of the most recent check
func (r *Reconciler) Last() []*Drift {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

// Check runs one drift check over every network in the roster
func (r *Reconciler) Check(ctx context.Context) ([]*Drift, error) {
	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.ReconciliationDuration)
		metrics.ReconciliationCyclesTotal.Inc()
	}()

	networks, err := r.store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load roster: %w", err)
	}

	drifts := make([]*Drift, len(networks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, n := range networks {
		g.Go(func() error {
			d, err := r.checkNetwork(gctx, n)
			if err != nil {
				return err
			}
			drifts[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	runtimeHealthy := true
	for _, d := range drifts {
		metrics.RosterDrift.WithLabelValues(d.Network).Set(float64(d.Count()))
		if d.RunningServices == nil {
			runtimeHealthy = false
		}
		if d.Drifted() {
			r.logger.Warn().
				Str("network", d.Network).
				Strs("missing_in_manifest", d.MissingInManifest).
				Strs("missing_in_roster", d.MissingInRoster).
				Msg("Roster drift detected")
			r.events.Publish(events.New(events.EventRosterDrift,
				fmt.Sprintf("network %s: %d node(s) out of sync", d.Network, d.Count()),
				map[string]string{"network": d.Network}))
		}
	}
	if len(drifts) > 0 {
		message := ""
		if !runtimeHealthy {
			message = "running-services query failed"
		}
		metrics.UpdateComponent(metrics.ComponentRuntime, runtimeHealthy, message)
	}

	r.mu.Lock()
	previous := r.last
	r.last = drifts
	r.mu.Unlock()

	// Networks removed since the last cycle drop their gauge series
	for _, old := range previous {
		if !slices.ContainsFunc(drifts, func(d *Drift) bool { return d.Network == old.Network }) {
			metrics.RosterDrift.DeleteLabelValues(old.Network)
		}
	}

	return drifts, nil
}

func (r *Reconciler) checkNetwork(ctx context.Context, n *types.Network) (*Drift, error) {
	mf, err := manifest.Load(r.driver.ManifestPath(n.Name))
	if err != nil {
		return nil, fmt.Errorf("network %s: %w", n.Name, err)
	}

	d := &Drift{
		Network:           n.Name,
		MissingInManifest: []string{},
		MissingInRoster:   []string{},
	}

	services := mf.ServiceNames()
	for _, node := range n.Nodes {
		if !slices.Contains(services, node.Name) {
			d.MissingInManifest = append(d.MissingInManifest, node.Name)
		}
	}
	for _, svc := range services {
		if n.FindNode(svc) == nil {
			d.MissingInRoster = append(d.MissingInRoster, svc)
		}
	}

	project := runtime.Project{Name: runtime.ProjectName(n.Name), File: r.driver.ManifestPath(n.Name)}
	running, err := r.runtime.RunningServices(ctx, project)
	if err != nil {
		r.logger.Warn().Err(err).Str("network", n.Name).Msg("Failed to list running services")
	} else {
		d.RunningServices = running
	}
	return d, nil
}
