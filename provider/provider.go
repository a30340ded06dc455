// Package provider defines the pluggable collaborator the convergence
// driver calls to turn instance nodes into real-world effects (spec §6).
package provider

import (
	"context"

	"github.com/creact-labs/creact/instance"
)

// Provider realizes instance nodes. Both methods must be idempotent: Apply
// may be retried by the driver's retry policy, and Destroy on an
// already-absent resource is success, not an error.
type Provider interface {
	// Apply materializes node (create or update) and returns the outputs to
	// write back into its output signals. A non-nil error marks the node
	// failed for this batch; its outputs are not injected (spec §7).
	Apply(ctx context.Context, node *instance.Node) (outputs map[string]any, err error)

	// Destroy removes node. Removing an already-absent resource returns nil.
	Destroy(ctx context.Context, node *instance.Node) error
}

// ApplyError wraps a failed Apply with the node id that failed, so the
// driver can report which node blocked a batch without the provider having
// to embed that itself.
type ApplyError struct {
	NodeID string
	Err    error
}

func (e *ApplyError) Error() string {
	return "apply " + e.NodeID + ": " + e.Err.Error()
}

func (e *ApplyError) Unwrap() error { return e.Err }

// DestroyError wraps a failed Destroy with the node id that failed.
type DestroyError struct {
	NodeID string
	Err    error
}

func (e *DestroyError) Error() string {
	return "destroy " + e.NodeID + ": " + e.Err.Error()
}

func (e *DestroyError) Unwrap() error { return e.Err }
