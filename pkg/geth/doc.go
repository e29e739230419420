/*
Package geth wraps the node software: key generation and launch flags.

Keygen creates the key material a network needs. NativeKeygen does it in
process with go-ethereum (secp256k1 node key for the bootnode, scrypt
keystore file for accounts); DockerKeygen runs the bootnode and geth tools
of the node image in throwaway containers. Both leave the same files
behind, so FindKeyfile and ReadKeyfileAddress work with either.

Flags is the static role table. Roles are data, not behavior: each role
maps to an ordered list of flag builders fed by FlagParams.

	signer:  --datadir --port --bootnodes --networkid --unlock --password
	         --mine --miner.etherbase --ipcpath --verbosity
	rpc:     --datadir --networkid --port --bootnodes --ipcpath --http ...
*/
package geth
