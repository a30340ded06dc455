// Package redisstate is a Backend backed by github.com/redis/go-redis/v9,
// grounded on the Redis client wiring in the NVIDIA OSMO example: a single
// shared *redis.Client, every call scoped to the caller's context.
package redisstate

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/creact-labs/creact/backend"
)

const (
	stateKeyPrefix = "creact:state:"
	lockKeyPrefix  = "creact:lock:"
	auditKeyPrefix = "creact:audit:"
)

// releaseScript only deletes the lock key if it still holds the expected
// holder value, so a releaser can never clear a lock it no longer owns (one
// that already expired and was re-acquired by someone else).
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Backend implements backend.Backend on a single Redis connection.
type Backend struct {
	client *redis.Client
	log    logr.Logger
}

func New(client *redis.Client, log logr.Logger) *Backend {
	return &Backend{client: client, log: log}
}

func (b *Backend) GetState(ctx context.Context, stackName string) (*backend.DeploymentState, error) {
	raw, err := b.client.Get(ctx, stateKeyPrefix+stackName).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get state %q", stackName)
	}

	var state backend.DeploymentState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, errors.Wrapf(err, "decode state %q", stackName)
	}
	return &state, nil
}

func (b *Backend) SaveState(ctx context.Context, stackName string, state *backend.DeploymentState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return errors.Wrapf(err, "encode state %q", stackName)
	}

	if err := b.client.Set(ctx, stateKeyPrefix+stackName, raw, 0).Err(); err != nil {
		return errors.Wrapf(err, "save state %q", stackName)
	}
	b.log.V(1).Info("saved state", "stack", stackName, "nodes", len(state.Nodes))
	return nil
}

// AcquireLock is a Redis SET NX PX: it only succeeds if the key is absent
// (or already held by the same holder, treated as a renewal), expiring
// automatically after ttlSeconds so a crashed holder cannot wedge the stack.
func (b *Backend) AcquireLock(ctx context.Context, stackName, holder string, ttlSeconds int) (bool, error) {
	ttl := time.Duration(ttlSeconds) * time.Second

	ok, err := b.client.SetNX(ctx, lockKeyPrefix+stackName, holder, ttl).Result()
	if err != nil {
		return false, errors.Wrapf(err, "acquire lock %q", stackName)
	}
	if ok {
		return true, nil
	}

	current, err := b.client.Get(ctx, lockKeyPrefix+stackName).Result()
	if err != nil && err != redis.Nil {
		return false, errors.Wrapf(err, "acquire lock %q", stackName)
	}
	if current == holder {
		return b.client.Expire(ctx, lockKeyPrefix+stackName, ttl).Result()
	}
	return false, nil
}

func (b *Backend) ReleaseLock(ctx context.Context, stackName, holder string) error {
	if err := releaseScript.Run(ctx, b.client, []string{lockKeyPrefix + stackName}, holder).Err(); err != nil && err != redis.Nil {
		return errors.Wrapf(err, "release lock %q", stackName)
	}
	return nil
}

func (b *Backend) AppendAuditLog(ctx context.Context, stackName string, entry backend.AuditEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrapf(err, "encode audit entry for %q", stackName)
	}
	if err := b.client.RPush(ctx, auditKeyPrefix+stackName, raw).Err(); err != nil {
		return errors.Wrapf(err, "append audit log %q", stackName)
	}
	return nil
}

func (b *Backend) GetAuditLog(ctx context.Context, stackName string, limit int) ([]backend.AuditEntry, error) {
	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}

	raws, err := b.client.LRange(ctx, auditKeyPrefix+stackName, start, -1).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "get audit log %q", stackName)
	}

	out := make([]backend.AuditEntry, 0, len(raws))
	for _, raw := range raws {
		var entry backend.AuditEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, errors.Wrapf(err, "decode audit entry for %q", stackName)
		}
		out = append(out, entry)
	}
	return out, nil
}
