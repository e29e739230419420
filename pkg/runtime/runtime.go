package runtime

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

// Project scopes compose commands to one network
type Project struct {
	Name string
	File string
}

// ContainerInfo is the inspected state of a service container
type ContainerInfo struct {
	ID        string
	Name      string
	State     string
	IPAddress string
	// Ports maps a container port key such as "30303/tcp" to its host port
	Ports map[string]int
}

// HostPort returns the host port published for a container port key
func (c *ContainerInfo) HostPort(key string) (int, bool) {
	port, ok := c.Ports[key]
	return port, ok
}

// Running reports whether the container is running
func (c *ContainerInfo) Running() bool {
	return c.State == StateRunning
}

// StateRunning is the docker state of a running container
const StateRunning = "running"

// Runtime drives the containers of a network's compose project
type Runtime interface {
	// Up creates and starts a service, detached
	Up(ctx context.Context, p Project, service string) error

	// Stop stops a service
	Stop(ctx context.Context, p Project, service string) error

	// Remove stops and removes a service's containers
	Remove(ctx context.Context, p Project, service string) error

	// StartProject starts every service of the project
	StartProject(ctx context.Context, p Project) error

	// StopProject stops every service of the project
	StopProject(ctx context.Context, p Project) error

	// Down tears the whole project down
	Down(ctx context.Context, p Project) error

	// RunningServices lists the services in running state
	RunningServices(ctx context.Context, p Project) ([]string, error)

	// Logs returns the logs of a service
	Logs(ctx context.Context, p Project, service string) (string, error)

	// Inspect returns the state, IP and host ports of a service container
	Inspect(ctx context.Context, p Project, service string) (*ContainerInfo, error)
}

var projectNameInvalid = regexp.MustCompile(`[^a-z0-9_-]`)

// ProjectName derives the compose project name from a network name
func ProjectName(network string) string {
	return projectNameInvalid.ReplaceAllString(strings.ToLower(network), "")
}

// CommandRunner runs an external command and returns its stdout
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec. On failure the error carries the
// command's stderr.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return stdout.Bytes(), fmt.Errorf("%s %s: %w: %s",
			name, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}
