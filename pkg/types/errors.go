package types

import (
	"fmt"

	"github.com/containerd/errdefs"
)

// Error kinds. Each wraps an errdefs class so callers can branch on either
// the specific sentinel or the generic kind (errdefs.IsNotFound and friends).
var (
	ErrValidation        = fmt.Errorf("validation error: %w", errdefs.ErrInvalidArgument)
	ErrInvalidAddress    = fmt.Errorf("invalid address length: %w", errdefs.ErrInvalidArgument)
	ErrNetworkNotFound   = fmt.Errorf("network %w", errdefs.ErrNotFound)
	ErrNodeNotFound      = fmt.Errorf("node %w", errdefs.ErrNotFound)
	ErrKeyfileNotFound   = fmt.Errorf("keyfile %w", errdefs.ErrNotFound)
	ErrNetworkExists     = fmt.Errorf("network %w", errdefs.ErrAlreadyExists)
	ErrNodeExists        = fmt.Errorf("node %w", errdefs.ErrAlreadyExists)
	ErrInconsistentState = fmt.Errorf("inconsistent state: %w", errdefs.ErrFailedPrecondition)

	ErrExternalProcess     = fmt.Errorf("external process error: %w", errdefs.ErrUnavailable)
	ErrContainerTimeout    = fmt.Errorf("container start timeout: %w", errdefs.ErrUnavailable)
	ErrContainerOperation  = fmt.Errorf("container operation failed: %w", errdefs.ErrUnavailable)
	ErrStatusQuery         = fmt.Errorf("status query failed: %w", errdefs.ErrUnavailable)
	ErrNodeProvisioning    = fmt.Errorf("node provisioning failed: %w", errdefs.ErrUnavailable)
	ErrNetworkProvisioning = fmt.Errorf("network provisioning failed: %w", errdefs.ErrUnavailable)

	ErrPersistence     = fmt.Errorf("persistence error: %w", errdefs.ErrInternal)
	ErrCorruptRoster   = fmt.Errorf("corrupt roster: %w", errdefs.ErrDataLoss)
	ErrCorruptManifest = fmt.Errorf("corrupt manifest: %w", errdefs.ErrDataLoss)
	ErrCorruptGenesis  = fmt.Errorf("corrupt genesis: %w", errdefs.ErrDataLoss)
)
