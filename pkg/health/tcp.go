package health

import (
	"context"
	"fmt"
	"net"
	"time"
)

// TCPChecker dials a published port, typically the devp2p listener
type TCPChecker struct {
	Address string
	Timeout time.Duration
}

// NewTCPChecker creates a new TCP health checker
func NewTCPChecker(address string) *TCPChecker {
	return &TCPChecker{
		Address: address,
		Timeout: DefaultTimeout,
	}
}

// Check performs the TCP health check
func (t *TCPChecker) Check(ctx context.Context) Result {
	start := time.Now()

	dialer := &net.Dialer{Timeout: t.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", t.Address)
	if err != nil {
		return result(CheckTypeTCP, start, false, fmt.Sprintf("connection failed: %v", err))
	}
	defer conn.Close()

	return result(CheckTypeTCP, start, true, fmt.Sprintf("connected to %s", t.Address))
}

// Type returns the health check type
func (t *TCPChecker) Type() CheckType {
	return CheckTypeTCP
}
