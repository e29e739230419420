/*
Package health probes running poanet nodes from the host.

Two checkers share the Checker interface:

	TCPChecker   dials the published devp2p port
	RPCChecker   calls eth_blockNumber and net_peerCount on the published
	             JSON-RPC port through the go-ethereum rpc client

Probe runs a set of named checkers concurrently and folds them into a
NodeReport. A node is healthy only if its container is running and every
check passes. Failed checks are reported, not returned as errors, so a
report is always produced for a node that exists.
*/
package health
