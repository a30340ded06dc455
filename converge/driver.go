package converge

import (
	"context"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/creact-labs/creact/backend"
	"github.com/creact-labs/creact/element"
	"github.com/creact-labs/creact/instance"
	"github.com/creact-labs/creact/provider"
)

// defaultLockTTLSeconds bounds how long a crashed holder can wedge a stack
// before another run's AcquireLock succeeds (spec §6: "advisory,
// TTL-bounded").
const defaultLockTTLSeconds = 60

// Driver wraps Loop with the backend-facing half of spec §4.7: acquiring
// the advisory lock, loading and hydrating from the previous run's
// persisted state, and persisting the result plus an audit entry on the way
// out. Loop itself stays backend-agnostic so it can also be used directly
// (see the root package's Run) by callers that manage persistence
// themselves.
type Driver struct {
	Provider       provider.Provider
	Backend        backend.Backend
	Log            logr.Logger
	Options        Options
	LockTTLSeconds int

	// Now supplies the timestamp written to persisted state and audit
	// entries; the core never calls a clock itself (spec §6).
	Now func() string
}

func (d *Driver) lockTTL() int {
	if d.LockTTLSeconds <= 0 {
		return defaultLockTTLSeconds
	}
	return d.LockTTLSeconds
}

func (d *Driver) now() string {
	if d.Now != nil {
		return d.Now()
	}
	return ""
}

// Converge runs one full spec §4.7 cycle for stackName: acquire the lock,
// load and hydrate from the previous run, converge via Loop, persist the
// result, append an audit entry, and release the lock. The lock is held for
// the whole call, not just the load/save boundary, so two concurrent
// Converge calls for the same stack can never interleave their applies.
func (d *Driver) Converge(ctx context.Context, stackName string, root element.Element) (*Result, error) {
	holder := uuid.NewString()

	ok, err := d.Backend.AcquireLock(ctx, stackName, holder, d.lockTTL())
	if err != nil {
		return nil, errors.Wrapf(err, "acquire lock for stack %q", stackName)
	}
	if !ok {
		return nil, errors.Errorf("stack %q is locked by another run", stackName)
	}
	defer func() {
		if err := d.Backend.ReleaseLock(ctx, stackName, holder); err != nil {
			d.Log.Error(err, "release lock failed", "stack", stackName)
		}
	}()

	state, err := d.Backend.GetState(ctx, stackName)
	if err != nil {
		return nil, errors.Wrapf(err, "load state for stack %q", stackName)
	}

	var previous []*instance.Node
	if state != nil {
		previous = make([]*instance.Node, 0, len(state.Nodes))
		for _, sn := range state.Nodes {
			previous = append(previous, backend.FromSerializedNode(sn))
		}
	}

	result, loopErr := Loop(ctx, d.Log, d.Provider, root, previous, d.Options)
	if result == nil {
		return nil, loopErr
	}

	if saveErr := d.persist(ctx, stackName, result); saveErr != nil {
		if loopErr != nil {
			return result, errors.Wrap(loopErr, saveErr.Error())
		}
		return result, saveErr
	}

	return result, loopErr
}

func (d *Driver) persist(ctx context.Context, stackName string, result *Result) error {
	serialized := make([]backend.SerializedNode, len(result.Nodes))
	for i, n := range result.Nodes {
		serialized[i] = backend.ToSerializedNode(n)
	}

	newState := &backend.DeploymentState{
		Nodes:     serialized,
		Timestamp: d.now(),
	}
	if result.ChangeSet != nil {
		ids := make([]string, len(result.ChangeSet.DeploymentOrder))
		for i, n := range result.ChangeSet.DeploymentOrder {
			ids[i] = n.ID
		}
		newState.DeploymentOrder = ids
		newState.CheckpointIndex = len(result.ChangeSet.ParallelBatches)
	}

	if err := d.Backend.SaveState(ctx, stackName, newState); err != nil {
		return errors.Wrapf(err, "save state for stack %q", stackName)
	}

	if result.ChangeSet != nil {
		entry := backend.AuditEntry{
			StackName: stackName,
			Timestamp: d.now(),
			ChangeSummary: backend.ChangeSummary{
				Creates: len(result.ChangeSet.Creates),
				Updates: len(result.ChangeSet.Updates),
				Noops:   len(result.ChangeSet.Noops),
				Deletes: len(result.ChangeSet.Deletes),
			},
			CheckpointIndex: newState.CheckpointIndex,
		}
		if err := d.Backend.AppendAuditLog(ctx, stackName, entry); err != nil {
			d.Log.Error(err, "append audit log failed", "stack", stackName)
		}
	}

	return nil
}
