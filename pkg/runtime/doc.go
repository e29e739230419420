/*
Package runtime drives the containers of a network through docker compose.

Each network is one compose project. The project name is the network name
lower-cased with everything outside [a-z0-9_-] stripped (ProjectName), and
the project file is the network's manifest:

	docker compose -p <project> -f <network>/<network>_docker-compose.yml <cmd>

Lifecycle commands (up, stop, rm, start, down, ps, logs) go through the
compose CLI, executed by a CommandRunner so tests can record invocations
instead of running them. Inspection goes through the Docker engine API:
the service container is found by its compose labels, then inspected for
state, IP address on the custom bridge and published host ports.

	┌──────────┐  up/stop/rm/down/ps/logs  ┌────────────────┐
	│ Compose  ├──────────────────────────►│ docker compose │
	│          │  list/inspect             ├────────────────┤
	│          ├──────────────────────────►│ dockerd API    │
	│          │  task status (optional)   ├────────────────┤
	│          ├──────────────────────────►│ containerd     │
	└──────────┘                           └────────────────┘

When a containerd socket is configured, ContainerdProbe reads the task
status of a container Docker reports as running, in the "moby" namespace
dockerd uses, and that status wins.

Every collaborator failure is wrapped in types.ErrExternalProcess together
with the command's stderr; the manager adds network, node and step context.
*/
package runtime
