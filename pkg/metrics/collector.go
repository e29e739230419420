package metrics

import (
	"time"

	"github.com/cuemby/poanet/pkg/types"
)

// RosterSource is anything that can load the network roster
type RosterSource interface {
	Load() ([]*types.Network, error)
}

// Collector refreshes the roster gauges periodically
type Collector struct {
	roster   RosterSource
	interval time.Duration
	stopCh   chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(roster RosterSource, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Collector{
		roster:   roster,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		c.Collect()

		for {
			select {
			case <-ticker.C:
				c.Collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

// Collect sets the network and node gauges from the current roster. The
// roster component is marked unhealthy when it cannot be loaded.
func (c *Collector) Collect() {
	networks, err := c.roster.Load()
	if err != nil {
		UpdateComponent(ComponentRoster, false, err.Error())
		return
	}
	UpdateComponent(ComponentRoster, true, "")

	NetworksTotal.Set(float64(len(networks)))

	counts := make(map[types.NodeRole]int, len(types.NodeRoles))
	for _, n := range networks {
		for _, node := range n.Nodes {
			counts[node.Role]++
		}
	}
	// Every role is set so roles that dropped to zero are not left stale
	for _, role := range types.NodeRoles {
		NodesTotal.WithLabelValues(string(role)).Set(float64(counts[role]))
	}
}
