// Package memstate is an in-process Backend for tests and single-shot runs:
// no persistence beyond the process lifetime, and no third-party dependency
// beyond the ambient stack and gopkg.in/yaml.v3 (used by DumpYAML).
package memstate

import (
	"context"
	"sync"

	"github.com/go-logr/logr"
	"gopkg.in/yaml.v3"

	"github.com/creact-labs/creact/backend"
)

// Backend holds every stack's state, lock and audit log in memory, guarded
// by a single mutex — fine for the test/single-shot use this backend is for;
// it makes no attempt at cross-process coordination.
type Backend struct {
	mu     sync.Mutex
	log    logr.Logger
	states map[string]*backend.DeploymentState
	locks  map[string]string
	audit  map[string][]backend.AuditEntry
}

func New(log logr.Logger) *Backend {
	return &Backend{
		log:    log,
		states: make(map[string]*backend.DeploymentState),
		locks:  make(map[string]string),
		audit:  make(map[string][]backend.AuditEntry),
	}
}

func (b *Backend) GetState(ctx context.Context, stackName string) (*backend.DeploymentState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.states[stackName]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (b *Backend) SaveState(ctx context.Context, stackName string, state *backend.DeploymentState) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	cp := *state
	b.states[stackName] = &cp
	b.log.V(1).Info("saved state", "stack", stackName, "nodes", len(state.Nodes))
	return nil
}

// AcquireLock ignores ttlSeconds: an in-process lock is released when the
// holder calls ReleaseLock or the process exits, not on a timer.
func (b *Backend) AcquireLock(ctx context.Context, stackName, holder string, ttlSeconds int) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if existing, locked := b.locks[stackName]; locked && existing != holder {
		return false, nil
	}
	b.locks[stackName] = holder
	return true, nil
}

func (b *Backend) ReleaseLock(ctx context.Context, stackName, holder string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.locks[stackName] != holder {
		return nil
	}
	delete(b.locks, stackName)
	return nil
}

func (b *Backend) AppendAuditLog(ctx context.Context, stackName string, entry backend.AuditEntry) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.audit[stackName] = append(b.audit[stackName], entry)
	return nil
}

func (b *Backend) GetAuditLog(ctx context.Context, stackName string, limit int) ([]backend.AuditEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	log := b.audit[stackName]
	if limit > 0 && len(log) > limit {
		log = log[len(log)-limit:]
	}
	out := make([]backend.AuditEntry, len(log))
	copy(out, log)
	return out, nil
}

// DumpYAML renders stackName's current state as YAML, for debugging —
// grounded on the pack's use of yaml.v3 for human-readable state/config
// snapshots.
func (b *Backend) DumpYAML(stackName string) (string, error) {
	b.mu.Lock()
	s, ok := b.states[stackName]
	b.mu.Unlock()

	if !ok {
		return "", nil
	}

	out, err := yaml.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
