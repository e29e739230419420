package runtime

import (
	"context"
	"fmt"

	"github.com/containerd/containerd"
	"github.com/containerd/containerd/namespaces"
)

const (
	// DefaultNamespace is the containerd namespace dockerd runs containers in
	DefaultNamespace = "moby"

	// DefaultSocketPath is the default containerd socket
	DefaultSocketPath = "/run/containerd/containerd.sock"
)

// StateProbe reports the state of a container by ID
type StateProbe interface {
	State(ctx context.Context, containerID string) (string, error)
}

// ContainerdProbe reads task status straight from containerd. Docker's
// view of a container can lag its task on restarts; the probe lets the
// running-state poll confirm the process is actually up.
type ContainerdProbe struct {
	client    *containerd.Client
	namespace string
}

// NewContainerdProbe connects to containerd
func NewContainerdProbe(socketPath, namespace string) (*ContainerdProbe, error) {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}

	client, err := containerd.New(socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to containerd: %w", err)
	}

	return &ContainerdProbe{
		client:    client,
		namespace: namespace,
	}, nil
}

// Close closes the containerd client connection
func (p *ContainerdProbe) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

// State maps the container's task status to a docker state string
func (p *ContainerdProbe) State(ctx context.Context, containerID string) (string, error) {
	ctx = namespaces.WithNamespace(ctx, p.namespace)

	c, err := p.client.LoadContainer(ctx, containerID)
	if err != nil {
		return "", fmt.Errorf("failed to load container %s: %w", containerID, err)
	}

	task, err := c.Task(ctx, nil)
	if err != nil {
		// No task means the container is not running
		return "created", nil
	}

	status, err := task.Status(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get task status: %w", err)
	}

	switch status.Status {
	case containerd.Running:
		return StateRunning, nil
	case containerd.Paused, containerd.Pausing:
		return "paused", nil
	case containerd.Stopped:
		return "exited", nil
	case containerd.Created:
		return "created", nil
	default:
		return string(status.Status), nil
	}
}
