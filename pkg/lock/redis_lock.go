package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only if this owner still holds it.
const releaseScript = `
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`

// RedisService implements Service on a single Redis instance using
// SET NX with a per-acquisition owner token.
type RedisService struct {
	client *redis.Client

	mu     sync.Mutex
	owners map[string]string // key -> owner token of our current hold
}

// NewRedisService creates a Redis-backed lock service.
func NewRedisService(client *redis.Client) *RedisService {
	return &RedisService{
		client: client,
		owners: make(map[string]string),
	}
}

// Acquire takes the named lock with a fresh owner token.
func (s *RedisService) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	owner := uuid.NewString()

	ok, err := s.client.SetNX(ctx, key, owner, ttl).Result()
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	s.mu.Lock()
	s.owners[key] = owner
	s.mu.Unlock()
	return true, nil
}

// Release releases the lock if we still own it.
func (s *RedisService) Release(ctx context.Context, key string) error {
	s.mu.Lock()
	owner, ok := s.owners[key]
	delete(s.owners, key)
	s.mu.Unlock()

	if !ok {
		return ErrNotHeld
	}

	result, err := s.client.Eval(ctx, releaseScript, []string{key}, owner).Int()
	if err != nil {
		return err
	}
	if result == 0 {
		// TTL expired and someone else took over
		return ErrNotHeld
	}
	return nil
}

// Extend extends the TTL of a lock we currently hold.
func (s *RedisService) Extend(ctx context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	owner, ok := s.owners[key]
	s.mu.Unlock()

	if !ok {
		return ErrNotHeld
	}

	script := `
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("pexpire", KEYS[1], ARGV[2])
		else
			return 0
		end
	`

	result, err := s.client.Eval(ctx, script, []string{key}, owner, int(ttl.Milliseconds())).Int()
	if err != nil {
		return err
	}
	if result == 0 {
		return ErrNotHeld
	}
	return nil
}

// IsHeld reports whether we currently own the named lock.
func (s *RedisService) IsHeld(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	owner, ok := s.owners[key]
	s.mu.Unlock()
	if !ok {
		return false, nil
	}

	value, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	return value == owner, nil
}
