/*
Package volume owns the on-disk layout of network and node state.

LocalDriver maps network and node names to host directories and files, and
creates or deletes them. Every file a node container bind-mounts lives under
the driver's base path:

	<base>/
	├── networks.json                      roster
	└── <network>/
	    ├── <network>_docker-compose.yml   service manifest
	    ├── genesis.json                   consensus configuration
	    ├── bootnode/boot.key              bootnode node key
	    └── <node>/
	        ├── password.txt               account password (0600)
	        └── keystore/UTC--…            account key file

HostPath turns a path into the absolute forward-slash form compose expects
for bind-mount sources. WriteFile is the atomic temp-then-rename write used
for the roster, the manifest and the genesis document.

Deleting a directory that does not exist is not an error, so teardown can be
re-run after a partial failure.
*/
package volume
