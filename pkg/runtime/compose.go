package runtime

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cuemby/poanet/pkg/log"
	"github.com/cuemby/poanet/pkg/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/go-connections/nat"
)

const (
	// LabelProject is the compose project label on containers
	LabelProject = "com.docker.compose.project"

	// LabelService is the compose service label on containers
	LabelService = "com.docker.compose.service"
)

// DefaultComposeCommand is the compose CLI invocation
var DefaultComposeCommand = []string{"docker", "compose"}

// Compose implements Runtime with the compose CLI for lifecycle commands and
// the Docker engine API for inspection.
type Compose struct {
	command []string
	run     CommandRunner
	docker  DockerAPI
	probe   StateProbe
}

// ComposeOption configures a Compose runtime
type ComposeOption func(*Compose)

// WithCommand overrides the compose command, e.g. []string{"docker-compose"}
func WithCommand(command []string) ComposeOption {
	return func(c *Compose) {
		if len(command) > 0 {
			c.command = command
		}
	}
}

// WithRunner overrides how commands are executed
func WithRunner(run CommandRunner) ComposeOption {
	return func(c *Compose) { c.run = run }
}

// WithStateProbe adds a second source of truth for the running state
func WithStateProbe(probe StateProbe) ComposeOption {
	return func(c *Compose) { c.probe = probe }
}

// NewCompose creates a compose runtime inspecting containers through docker
func NewCompose(docker DockerAPI, opts ...ComposeOption) *Compose {
	c := &Compose{
		command: DefaultComposeCommand,
		run:     ExecRunner,
		docker:  docker,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Compose) compose(ctx context.Context, p Project, args ...string) ([]byte, error) {
	full := append([]string{}, c.command[1:]...)
	full = append(full, "-p", p.Name, "-f", p.File)
	full = append(full, args...)

	logger := log.WithComponent("runtime")
	logger.Debug().Str("project", p.Name).Strs("args", args).Msg("Running compose")

	out, err := c.run(ctx, c.command[0], full...)
	if err != nil {
		return out, fmt.Errorf("%w: compose %s failed: %w", types.ErrExternalProcess, args[0], err)
	}
	return out, nil
}

// Up creates and starts a service, detached
func (c *Compose) Up(ctx context.Context, p Project, service string) error {
	_, err := c.compose(ctx, p, "up", "-d", service)
	return err
}

// Stop stops a service
func (c *Compose) Stop(ctx context.Context, p Project, service string) error {
	_, err := c.compose(ctx, p, "stop", service)
	return err
}

// Remove stops and removes a service's containers
func (c *Compose) Remove(ctx context.Context, p Project, service string) error {
	_, err := c.compose(ctx, p, "rm", "--stop", "--force", service)
	return err
}

// StartProject starts every service of the project
func (c *Compose) StartProject(ctx context.Context, p Project) error {
	_, err := c.compose(ctx, p, "start")
	return err
}

// StopProject stops every service of the project
func (c *Compose) StopProject(ctx context.Context, p Project) error {
	_, err := c.compose(ctx, p, "stop")
	return err
}

// Down tears the whole project down
func (c *Compose) Down(ctx context.Context, p Project) error {
	_, err := c.compose(ctx, p, "down")
	return err
}

// RunningServices lists the services in running state
func (c *Compose) RunningServices(ctx context.Context, p Project) ([]string, error) {
	out, err := c.compose(ctx, p, "ps", "--services", "--filter", "status=running")
	if err != nil {
		return nil, err
	}

	services := []string{}
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			services = append(services, line)
		}
	}
	return services, nil
}

// Logs returns the logs of a service
func (c *Compose) Logs(ctx context.Context, p Project, service string) (string, error) {
	out, err := c.compose(ctx, p, "logs", "--no-color", service)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Inspect finds the service container by its compose labels and reads its
// state, IP address and published ports.
func (c *Compose) Inspect(ctx context.Context, p Project, service string) (*ContainerInfo, error) {
	if c.docker == nil {
		return nil, fmt.Errorf("%w: no docker client configured", types.ErrExternalProcess)
	}

	containers, err := c.docker.ContainerList(ctx, container.ListOptions{
		All: true,
		Filters: filters.NewArgs(
			filters.Arg("label", LabelProject+"="+p.Name),
			filters.Arg("label", LabelService+"="+service),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list containers: %w", types.ErrExternalProcess, err)
	}
	if len(containers) == 0 {
		return nil, fmt.Errorf("%w: no container for service %s in project %s",
			types.ErrExternalProcess, service, p.Name)
	}

	details, err := c.docker.ContainerInspect(ctx, containers[0].ID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to inspect container %s: %w", types.ErrExternalProcess, containers[0].ID, err)
	}

	if details.ContainerJSONBase == nil {
		return nil, fmt.Errorf("%w: empty inspect response for %s", types.ErrExternalProcess, containers[0].ID)
	}

	info := &ContainerInfo{
		ID:    details.ID,
		Name:  strings.TrimPrefix(details.Name, "/"),
		Ports: make(map[string]int),
	}
	if details.State != nil {
		info.State = details.State.Status
	}

	if settings := details.NetworkSettings; settings != nil {
		// Prefer the project's bridge network, fall back to any attached one
		names := make([]string, 0, len(settings.Networks))
		for name := range settings.Networks {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			ep := settings.Networks[name]
			if ep == nil || ep.IPAddress == "" {
				continue
			}
			if info.IPAddress == "" || strings.HasSuffix(name, "_custom_bridge") {
				info.IPAddress = ep.IPAddress
			}
		}

		for port, bindings := range settings.Ports {
			for _, b := range bindings {
				if hp, err := strconv.Atoi(b.HostPort); err == nil {
					info.Ports[string(port)] = hp
					break
				}
			}
		}
	}

	if c.probe != nil && info.Running() {
		state, err := c.probe.State(ctx, info.ID)
		if err != nil {
			logger := log.WithComponent("runtime")
			logger.Debug().Err(err).Str("container", info.ID).Msg("State probe failed, keeping docker state")
		} else {
			info.State = state
		}
	}

	return info, nil
}

// PortKey returns the inspect key of a container port, e.g. "30303/tcp"
func PortKey(port int, proto string) string {
	p, err := nat.NewPort(proto, strconv.Itoa(port))
	if err != nil {
		return fmt.Sprintf("%d/%s", port, proto)
	}
	return string(p)
}
