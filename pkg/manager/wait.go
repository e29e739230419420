package manager

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/poanet/pkg/metrics"
	"github.com/cuemby/poanet/pkg/runtime"
	"github.com/cuemby/poanet/pkg/types"
)

const (
	// DefaultPollInterval is how often the running state is polled
	DefaultPollInterval = 500 * time.Millisecond

	// DefaultStartTimeout bounds the running-state poll
	DefaultStartTimeout = 30 * time.Second
)

// waitRunning polls the runtime until the service's container reports
// running. Inspect errors count as "not yet"; the last one is reported on
// timeout. Cancellation of the caller's context is returned as is.
func (m *Manager) waitRunning(parent context.Context, p runtime.Project, service string) (*runtime.ContainerInfo, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ContainerStartWait)

	ctx, cancel := context.WithTimeout(parent, m.startTimeout)
	defer cancel()

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	var lastErr error
	check := func() *runtime.ContainerInfo {
		info, err := m.runtime.Inspect(ctx, p, service)
		if err != nil {
			lastErr = err
			return nil
		}
		if info.Running() {
			return info
		}
		lastErr = fmt.Errorf("container %s is %s", info.Name, info.State)
		return nil
	}

	// Check immediately
	if info := check(); info != nil {
		return info, nil
	}

	for {
		select {
		case <-ctx.Done():
			if err := parent.Err(); err != nil {
				return nil, fmt.Errorf("waiting for %s: %w", service, err)
			}
			if lastErr != nil {
				return nil, fmt.Errorf("%w: %s after %v: %v", types.ErrContainerTimeout, service, m.startTimeout, lastErr)
			}
			return nil, fmt.Errorf("%w: %s after %v", types.ErrContainerTimeout, service, m.startTimeout)
		case <-ticker.C:
			if info := check(); info != nil {
				return info, nil
			}
		}
	}
}
