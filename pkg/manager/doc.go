/*
Package manager implements the network and node lifecycle of poanet.

A Manager keeps three persisted artifacts of each network consistent:

	roster     networks.json (or poanet.db)   source of truth for membership
	manifest   <net>/<net>_docker-compose.yml one service per live node + bootnode
	genesis    <net>/genesis.json             clique config regenerated from the roster

# State machine

	network: absent → creating → active ⇄ stopped → removed
	node:    absent → provisioning → running ⇄ stopped → removed

# Operations

CreateNetwork generates the bootnode key, writes the bootnode-only manifest and
an authority-less genesis, starts the bootnode and polls the runtime every
PollInterval (500ms) until the container runs or StartTimeout (30s) elapses. The
bootnode's enode is then recorded in the roster. A timeout leaves the
directory and manifest in place.

AddNode creates the node directory and account, updates alloc and the signer
set, regenerates the whole genesis, upserts the manifest service, starts it,
reads back its host port and appends the node to the roster. Any step failure
is returned as types.ErrNodeProvisioning naming the step; earlier steps are
not rolled back.

RemoveNode removes the container and manifest entry first, then the roster
entry, its alloc, and regenerates genesis from the remaining signers. Nodes
that are already running keep the old authority set until restarted.

RemoveNetwork only acts on names found in the roster, using the stored name
for the compose project and the directory. Container and directory teardown
are best-effort; only the roster write can fail it.

Every bootnode publishes the fixed host port 30303 (tcp and udp). Two
networks on the same host therefore cannot run their bootnodes at the same
time; the second bootnode fails to start and CreateNetwork reports it.

NodeHealth probes the devp2p and rpc host ports of member nodes. The
bootnode runs the discovery-only bootnode tool, which has no TCP listener,
so its report rests on the container state alone.

# Concurrency

Each lifecycle operation holds a per-network lock (case-insensitive name) for
its whole duration. Operations on different networks run in parallel; their
roster writes are serialized by storage.Store.Update.

# Observability

Every operation gets an op_id, logs its start and outcome with network and
node fields, records poanet_operations_total and
poanet_operation_duration_seconds, and publishes an events.Event (or
operation.failed).
*/
package manager
