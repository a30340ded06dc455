// Package backend defines the Backend collaborator the convergence driver
// uses for state persistence and advisory locking (spec §6), plus the
// wire-safe representation of a persisted run.
package backend

import (
	"context"
	"reflect"

	"github.com/creact-labs/creact/instance"
)

// FuncSentinel replaces a function-valued prop when a node is serialized,
// since functions cannot survive a JSON/YAML round trip (spec §6 persisted
// state layout: "functions replaced with a sentinel").
const FuncSentinel = "<func>"

// SerializedNode is an instance node with its live output signals flattened
// to plain values and any function props replaced by FuncSentinel.
type SerializedNode struct {
	ID            string         `json:"id" yaml:"id"`
	Path          []string       `json:"path" yaml:"path"`
	ConstructType string         `json:"constructType" yaml:"constructType"`
	Props         map[string]any `json:"props" yaml:"props"`
	ReconcileKey  string         `json:"reconcileKey" yaml:"reconcileKey"`
	Outputs       map[string]any `json:"outputs" yaml:"outputs"`
}

// ToSerializedNode flattens a live instance node for persistence.
func ToSerializedNode(n *instance.Node) SerializedNode {
	return SerializedNode{
		ID:            n.ID,
		Path:          append([]string(nil), n.Path...),
		ConstructType: n.ConstructType,
		Props:         sanitizeProps(n.Props),
		ReconcileKey:  n.ReconcileKey,
		Outputs:       n.Outputs(),
	}
}

// FromSerializedNode rebuilds a node suitable for hydration: its outputs are
// set (as a single batch, creating the backing signals lazily) so a render
// pass that matches it by ReconcileKey carries them forward.
func FromSerializedNode(s SerializedNode) *instance.Node {
	n := instance.NewNode(s.ID, s.Path, s.ConstructType, s.Props, s.ReconcileKey)
	n.SetOutputs(s.Outputs)
	return n
}

func sanitizeProps(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		if v != nil && reflect.ValueOf(v).Kind() == reflect.Func {
			out[k] = FuncSentinel
			continue
		}
		out[k] = v
	}
	return out
}

// ChangeSummary is the audit-log-friendly shape of a reconcile.ChangeSet:
// counts only, not the full node payloads.
type ChangeSummary struct {
	Creates int `json:"creates" yaml:"creates"`
	Updates int `json:"updates" yaml:"updates"`
	Noops   int `json:"noops" yaml:"noops"`
	Deletes int `json:"deletes" yaml:"deletes"`
}

// AuditEntry records one completed converge run.
type AuditEntry struct {
	StackName       string        `json:"stackName" yaml:"stackName"`
	Timestamp       string        `json:"timestamp" yaml:"timestamp"`
	ChangeSummary   ChangeSummary `json:"changeSummary" yaml:"changeSummary"`
	CheckpointIndex int           `json:"checkpointIndex" yaml:"checkpointIndex"`
}

// DeploymentState is the persisted record for one stack: its node list plus
// run metadata (timestamp, checkpoint index, deployment order, audit ref).
type DeploymentState struct {
	Nodes []SerializedNode `json:"nodes" yaml:"nodes"`
	// Timestamp is caller-populated (the core never calls a clock itself).
	Timestamp string `json:"timestamp" yaml:"timestamp"`
	// CheckpointIndex is the number of parallel batches in the ChangeSet of
	// the run that produced Nodes, as converge.Driver records it. A cancelled
	// run records it the same way, without regard to how many batches were
	// applied, and no run reads it back or resumes from it.
	CheckpointIndex int `json:"checkpointIndex" yaml:"checkpointIndex"`
	// DeploymentOrder is the id sequence the run that produced Nodes applied
	// in. reconcile.OrderDeletes can order deletes by its reverse, but
	// converge.Driver does not read it back (spec §4.6).
	DeploymentOrder []string `json:"deploymentOrder" yaml:"deploymentOrder"`
	AuditRef        string   `json:"auditRef" yaml:"auditRef"`
}

// Backend persists deployment state and provides advisory locking, per
// spec §6. Lock/unlock are TTL-bounded: a holder that never releases loses
// the lock once ttlSeconds elapses, so a crashed run cannot wedge a stack
// forever.
type Backend interface {
	GetState(ctx context.Context, stackName string) (*DeploymentState, error)
	SaveState(ctx context.Context, stackName string, state *DeploymentState) error

	AcquireLock(ctx context.Context, stackName, holder string, ttlSeconds int) (bool, error)
	ReleaseLock(ctx context.Context, stackName, holder string) error

	AppendAuditLog(ctx context.Context, stackName string, entry AuditEntry) error
	GetAuditLog(ctx context.Context, stackName string, limit int) ([]AuditEntry, error)
}
