package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Compare-and-delete: only the token that acquired the lock may release it.
// Done server-side so a stale release after TTL expiry can never delete a
// lock acquired by a newer owner.
const releaseLockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var releaseLockLua = redis.NewScript(releaseLockScript)

// Delete-if-equal for corrupt flow blobs: if a concurrent writer replaced the
// blob with a fresh record between our read and the cleanup, the cleanup must
// not destroy it.
const deleteIfValueScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var deleteIfValueLua = redis.NewScript(deleteIfValueScript)

// RedisStore is the shared, multi-instance flow store. It relies on native
// Redis TTLs for expiry and on SET NX / Lua compare-and-delete for the
// advisory lock namespace.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisStore returns a RedisStore over the given client. The client's
// lifecycle stays with the caller.
func NewRedisStore(redisClient redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "gfl"
	}
	return &RedisStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *RedisStore) flowKey(flowID string) string {
	return s.prefix + ":flow:" + flowID
}

func (s *RedisStore) lockKey(flowID string) string {
	return s.prefix + ":lock:" + flowID
}

// Get returns the flow record for flowID, or nil when the key is missing,
// expired, or undecodable. Only transport failures surface as errors.
func (s *RedisStore) Get(ctx context.Context, flowID string) (*FlowRecord, error) {
	data, err := s.redis.Get(ctx, s.flowKey(flowID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreBackend, err)
	}

	record, err := decodeFlowRecord(data)
	if err != nil {
		// Corrupt blob: treat as absent so the flow restarts cleanly. The
		// delete is keyed on the corrupt bytes so a record saved concurrently
		// is left alone.
		s.deleteIfValue(ctx, s.flowKey(flowID), data)
		return nil, nil
	}
	return record, nil
}

func (s *RedisStore) deleteIfValue(ctx context.Context, key string, value []byte) {
	_, _ = deleteIfValueLua.Run(ctx, s.redis, []string{key}, value).Result()
}

// Save upserts the record and resets its TTL clock.
func (s *RedisStore) Save(ctx context.Context, record *FlowRecord, ttl time.Duration) error {
	encoded, err := encodeFlowRecord(record)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.flowKey(record.FlowID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreBackend, err)
	}
	return nil
}

// AcquireLock attempts an atomic set-if-absent on the lock key and returns
// the owner token on success, or "" when another owner holds the lock.
func (s *RedisStore) AcquireLock(ctx context.Context, flowID string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := s.redis.SetNX(ctx, s.lockKey(flowID), token, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreBackend, err)
	}
	if !ok {
		return "", nil
	}
	return token, nil
}

// ReleaseLock deletes the lock only if ownerToken still owns it. Releasing an
// expired or reassigned lock is a no-op, not an error.
func (s *RedisStore) ReleaseLock(ctx context.Context, flowID, ownerToken string) error {
	if err := releaseLockLua.Run(ctx, s.redis, []string{s.lockKey(flowID)}, ownerToken).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrStoreBackend, err)
	}
	return nil
}

// Healthcheck pings the backend.
func (s *RedisStore) Healthcheck(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreBackend, err)
	}
	return nil
}

// Close is idempotent. The Redis client is caller-owned and stays open.
func (s *RedisStore) Close() error {
	return nil
}
