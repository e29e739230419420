/*
Package types defines the data model shared by every poanet package.

# Roster model

A Network owns its Nodes exclusively; a Node has no existence outside the
network that lists it. The roster is the ordered collection of all networks
and is the single source of truth for membership:

	Network
	  ├── networkName   unique, doubles as directory and compose project key
	  ├── chainId
	  ├── blockTime     clique period in seconds
	  ├── bootnodeEnode enode://<pubkey>@<ip>:30303
	  ├── alloc         address → {balance}
	  └── nodes[]
	        ├── nodeName
	        ├── port      host port mapped to the node's 30303/tcp
	        ├── address   0x account address (bootnode: public key)
	        └── nodeType  bootnode | bootstrap | signer | member | rpc

JSON tags keep the roster file compatible with the field names used by
earlier tooling, so an existing networks.json loads unchanged.

# Roles

NodeRole is a closed enum. ParseRole is the only way to turn user input
into a role; anything outside NodeRoles is a validation error. The role
decides two things: the launch flags a node receives and whether its
address takes part in the clique signer set (see Network.Signers).

# Errors

errors.go declares the error kinds returned across packages. Every kind
wraps a class from github.com/containerd/errdefs:

	ErrNetworkNotFound, ErrNodeNotFound, ErrKeyfileNotFound   → NotFound
	ErrNetworkExists, ErrNodeExists                           → AlreadyExists
	ErrValidation, ErrInvalidAddress                          → InvalidArgument
	ErrInconsistentState                                      → FailedPrecondition
	ErrExternalProcess, ErrContainerTimeout, ...              → Unavailable
	ErrCorruptRoster, ErrCorruptManifest, ErrCorruptGenesis   → DataLoss
	ErrPersistence                                            → Internal

Callers wrap them with context:

	return fmt.Errorf("%w: %s", types.ErrNetworkNotFound, name)

and test with errors.Is, either against the sentinel or the errdefs class.
*/
package types
