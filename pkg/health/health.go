package health

import (
	"context"
	"sort"
	"sync"
	"time"
)

// CheckType represents the type of health check
type CheckType string

const (
	CheckTypeRPC CheckType = "rpc"
	CheckTypeTCP CheckType = "tcp"
)

// DefaultTimeout bounds a single check
const DefaultTimeout = 5 * time.Second

// Result represents the outcome of a health check
type Result struct {
	Type      CheckType         `json:"type"`
	Healthy   bool              `json:"healthy"`
	Message   string            `json:"message"`
	Details   map[string]string `json:"details,omitempty"`
	CheckedAt time.Time         `json:"checkedAt"`
	Duration  time.Duration     `json:"duration"`
}

// Checker is the interface that all health checks implement
type Checker interface {
	// Check performs the health check and returns the result
	Check(ctx context.Context) Result

	// Type returns the type of health check
	Type() CheckType
}

// NodeReport is the probed health of one node
type NodeReport struct {
	Network string            `json:"networkName"`
	Node    string            `json:"nodeName"`
	State   string            `json:"state"`
	Healthy bool              `json:"healthy"`
	Checks  map[string]Result `json:"checks"`
}

// Failing returns the names of the failed checks, sorted
func (r *NodeReport) Failing() []string {
	var names []string
	for name, res := range r.Checks {
		if !res.Healthy {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Probe runs every checker concurrently. The node is healthy when its
// container runs and every check passes.
func Probe(ctx context.Context, network, node, state string, checkers map[string]Checker) *NodeReport {
	report := &NodeReport{
		Network: network,
		Node:    node,
		State:   state,
		Checks:  make(map[string]Result, len(checkers)),
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for name, c := range checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := c.Check(ctx)
			mu.Lock()
			report.Checks[name] = res
			mu.Unlock()
		}()
	}
	wg.Wait()

	report.Healthy = state == "running" && len(report.Failing()) == 0
	return report
}

func result(t CheckType, start time.Time, healthy bool, message string) Result {
	return Result{
		Type:      t,
		Healthy:   healthy,
		Message:   message,
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}
