package network

import (
	"math/rand/v2"
	"net"
	"testing"

	"github.com/cuemby/poanet/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocate_NoCollisionsInRange(t *testing.T) {
	allocator := NewPortAllocator(rand.NewPCG(1, 2))
	used := make(map[int]struct{})

	for i := 0; i < 1000; i++ {
		before := len(used)

		port, err := allocator.Allocate(DefaultP2PBase, used)
		require.NoError(t, err)

		assert.GreaterOrEqual(t, port, DefaultP2PBase)
		assert.Less(t, port, DefaultP2PBase+PortSpan)
		assert.Equal(t, before+1, len(used), "draw %d collided with a used port", i)
	}
}

func TestAllocate_SkipsUsedPorts(t *testing.T) {
	allocator := NewPortAllocator(rand.NewPCG(7, 7))

	// Leave exactly one port free
	used := make(map[int]struct{})
	for p := DefaultRPCBase; p < DefaultRPCBase+PortSpan; p++ {
		used[p] = struct{}{}
	}
	free := DefaultRPCBase + 4242
	delete(used, free)

	port, err := allocator.Allocate(DefaultRPCBase, used)
	require.NoError(t, err)
	assert.Equal(t, free, port)
	_, inserted := used[free]
	assert.True(t, inserted)
}

func TestAllocate_Exhausted(t *testing.T) {
	used := make(map[int]struct{})
	for p := 100; p < 100+PortSpan; p++ {
		used[p] = struct{}{}
	}

	_, err := AllocatePort(100, used)
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestLocalIP(t *testing.T) {
	ip, err := LocalIP()
	if err != nil {
		t.Skipf("no non-loopback interface: %v", err)
	}

	parsed := net.ParseIP(ip)
	require.NotNil(t, parsed)
	assert.NotNil(t, parsed.To4())
	assert.False(t, parsed.IsLoopback())
}
