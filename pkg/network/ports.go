package network

import (
	"fmt"
	"math/rand/v2"
	"net"
	"sync"

	"github.com/cuemby/poanet/pkg/types"
)

const (
	// PortSpan is the width of the range a port is drawn from: [base, base+PortSpan)
	PortSpan = 10000

	// DefaultP2PBase is the base for devp2p tcp and udp host ports
	DefaultP2PBase = 30303

	// DefaultRPCBase is the base for HTTP-RPC host ports
	DefaultRPCBase = 8545
)

// PortAllocator assigns host ports by random sampling, rejecting collisions
type PortAllocator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewPortAllocator creates an allocator drawing from src. A nil src uses a
// randomly seeded source.
func NewPortAllocator(src rand.Source) *PortAllocator {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &PortAllocator{rnd: rand.New(src)}
}

var defaultAllocator = NewPortAllocator(nil)

// AllocatePort draws a port from [base, base+PortSpan) that is not in used,
// using the package allocator.
func AllocatePort(base int, used map[int]struct{}) (int, error) {
	return defaultAllocator.Allocate(base, used)
}

// Allocate draws a port from [base, base+PortSpan) that is not in used and
// inserts it into used.
func (a *PortAllocator) Allocate(base int, used map[int]struct{}) (int, error) {
	taken := 0
	for p := range used {
		if p >= base && p < base+PortSpan {
			taken++
		}
	}
	if taken >= PortSpan {
		return 0, fmt.Errorf("%w: no free port in [%d, %d)", types.ErrValidation, base, base+PortSpan)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for {
		port := base + a.rnd.IntN(PortSpan)
		if _, ok := used[port]; ok {
			continue
		}
		used[port] = struct{}{}
		return port, nil
	}
}

// LocalIP returns the first non-loopback IPv4 address of the host
func LocalIP() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", fmt.Errorf("failed to list interface addresses: %w", err)
	}

	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			return ip4.String(), nil
		}
	}

	return "", fmt.Errorf("no non-loopback IPv4 address found")
}
