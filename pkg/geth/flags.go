package geth

import (
	"fmt"

	"github.com/cuemby/poanet/pkg/manifest"
	"github.com/cuemby/poanet/pkg/types"
)

const (
	// IPCPath is the geth IPC socket inside containers
	IPCPath = manifest.ContainerDataDir + "/geth.ipc"

	// HTTPAddr is the HTTP-RPC bind address inside containers
	HTTPAddr = "0.0.0.0"

	// DefaultVerbosity is the geth log verbosity
	DefaultVerbosity = 3
)

// FlagParams are the per-node inputs of the role flag table
type FlagParams struct {
	NetworkID int64
	Bootnodes string
	Address   string
	Verbosity int
}

type flag func(p FlagParams) string

func static(s string) flag {
	return func(FlagParams) string { return s }
}

var (
	flagDatadir   = static("--datadir " + manifest.ContainerDataDir)
	flagPort      = static(fmt.Sprintf("--port %d", manifest.P2PPort))
	flagIPCPath   = static("--ipcpath " + IPCPath)
	flagPassword  = static("--password " + manifest.ContainerPasswordFile)
	flagMine      = static("--mine")
	flagNodeKey   = static("--nodekey " + manifest.ContainerBootKey)
	flagHTTP      = static(fmt.Sprintf(`--http --http.addr %s --http.port %d --http.corsdomain "*" --http.vhosts "*"`, HTTPAddr, manifest.RPCPort))
	flagNetworkID = func(p FlagParams) string { return fmt.Sprintf("--networkid %d", p.NetworkID) }
	flagBootnodes = func(p FlagParams) string { return fmt.Sprintf("--bootnodes=%q", p.Bootnodes) }
	flagUnlock    = func(p FlagParams) string { return "--unlock " + p.Address }
	flagEtherbase = func(p FlagParams) string { return "--miner.etherbase " + p.Address }
	flagVerbosity = func(p FlagParams) string { return fmt.Sprintf("--verbosity %d", p.Verbosity) }
)

// roleFlags is the launch flag table. Adding a role means extending this
// table and the mounts written by the manifest builder.
//
// The bootnode row lists the flags for running a bootnode as a full geth
// process. The bootnode service in the manifest runs the discovery-only
// bootnode tool instead (manifest.BootnodeCommand); both read the same node
// key.
var roleFlags = map[types.NodeRole][]flag{
	types.NodeRoleBootnode: {
		flagDatadir, flagNetworkID, flagPort, flagNodeKey, flagVerbosity,
	},
	types.NodeRoleBootstrap: {
		flagDatadir, flagNetworkID, flagIPCPath, flagPort, flagVerbosity,
	},
	types.NodeRoleSigner: {
		flagDatadir, flagPort, flagBootnodes, flagNetworkID, flagUnlock, flagPassword,
		flagMine, flagEtherbase, flagIPCPath, flagVerbosity,
	},
	types.NodeRoleMember: {
		flagDatadir, flagNetworkID, flagPort, flagBootnodes, flagUnlock, flagPassword,
		flagIPCPath, flagVerbosity,
	},
	types.NodeRoleRPC: {
		flagDatadir, flagNetworkID, flagPort, flagBootnodes, flagIPCPath, flagHTTP, flagVerbosity,
	},
}

// Flags returns the geth launch flags for a role
func Flags(role types.NodeRole, p FlagParams) ([]string, error) {
	table, ok := roleFlags[role]
	if !ok {
		return nil, fmt.Errorf("%w: no flags for role %q", types.ErrValidation, role)
	}
	if p.Verbosity == 0 {
		p.Verbosity = DefaultVerbosity
	}

	flags := make([]string, 0, len(table))
	for _, f := range table {
		flags = append(flags, f(p))
	}
	return flags, nil
}
