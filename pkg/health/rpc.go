package health

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// RPCChecker queries a node's JSON-RPC endpoint for its head block and peer
// count. The node is healthy when both calls answer.
type RPCChecker struct {
	URL     string
	Timeout time.Duration
	// MinPeers marks the node unhealthy below this peer count
	MinPeers uint64
}

// NewRPCChecker creates a JSON-RPC checker for url
func NewRPCChecker(url string) *RPCChecker {
	return &RPCChecker{URL: url, Timeout: DefaultTimeout}
}

// Check performs the JSON-RPC health check
func (r *RPCChecker) Check(ctx context.Context) Result {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	client, err := rpc.DialContext(ctx, r.URL)
	if err != nil {
		return result(CheckTypeRPC, start, false, fmt.Sprintf("dial failed: %v", err))
	}
	defer client.Close()

	var head hexutil.Uint64
	if err := client.CallContext(ctx, &head, "eth_blockNumber"); err != nil {
		return result(CheckTypeRPC, start, false, fmt.Sprintf("eth_blockNumber failed: %v", err))
	}
	var peers hexutil.Uint64
	if err := client.CallContext(ctx, &peers, "net_peerCount"); err != nil {
		return result(CheckTypeRPC, start, false, fmt.Sprintf("net_peerCount failed: %v", err))
	}

	healthy := uint64(peers) >= r.MinPeers
	message := fmt.Sprintf("block %d, %d peer(s)", uint64(head), uint64(peers))
	if !healthy {
		message = fmt.Sprintf("%s, want at least %d", message, r.MinPeers)
	}

	res := result(CheckTypeRPC, start, healthy, message)
	res.Details = map[string]string{
		"blockNumber": strconv.FormatUint(uint64(head), 10),
		"peers":       strconv.FormatUint(uint64(peers), 10),
	}
	return res
}

// Type returns the health check type
func (r *RPCChecker) Type() CheckType {
	return CheckTypeRPC
}
