/*
Package network assigns host ports to node services and discovers the host
address advertised by bootnodes.

# Port allocation

Every node service publishes three container ports on the host:

	30303/tcp  devp2p transport   host port drawn from [30303, 40303)
	30303/udp  devp2p discovery   host port drawn from [30303, 40303)
	8545/tcp   HTTP-RPC           host port drawn from [8545, 18545)

PortAllocator draws uniformly at random from [base, base+PortSpan) and
rejects draws already present in the caller's used set; it never scans
sequentially. The used set is owned by the caller and is updated with each
result, so one manifest build seeds it with the ports already published by
existing services and then allocates for the new one.

Allocate returns an error only when every port in the span is taken.

Tests inject a seeded source:

	allocator := network.NewPortAllocator(rand.NewPCG(1, 2))
	port, err := allocator.Allocate(network.DefaultP2PBase, used)

# Host address

LocalIP returns the first non-loopback IPv4 interface address. The bootnode
advertises it through --nat extip so peers outside the compose bridge can
reach it.
*/
package network
