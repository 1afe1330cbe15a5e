package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrRunInProgress is returned when a collection run is already active.
var ErrRunInProgress = errors.New("collection run already in progress")

// Locker serializes collection runs. The returned release func must be
// called exactly once.
type Locker interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// SummaryStore keeps the summary of the most recent run.
type SummaryStore interface {
	SaveLast(ctx context.Context, r *Result) error
	// Last returns nil, nil when no run has finished yet.
	Last(ctx context.Context) (*Result, error)
}

// MemoryLock is an in-process Locker.
type MemoryLock struct {
	mu sync.Mutex
}

func (l *MemoryLock) Acquire(context.Context) (func(), error) {
	if !l.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	var once sync.Once
	return func() { once.Do(l.mu.Unlock) }, nil
}

// MemorySummaries is an in-process SummaryStore.
type MemorySummaries struct {
	mu   sync.RWMutex
	last *Result
}

func (m *MemorySummaries) SaveLast(_ context.Context, r *Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.last = &cp
	return nil
}

func (m *MemorySummaries) Last(context.Context) (*Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.last == nil {
		return nil, nil
	}
	cp := *m.last
	return &cp, nil
}

// Redis keys.
const (
	RedisLockKey    = "resume-collector:run-lock"
	RedisSummaryKey = "resume-collector:last-run"
)

// DefaultLockTTL bounds how long a crashed run can hold the Redis lock.
const DefaultLockTTL = 2 * time.Hour

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock is a Locker shared by every process using the same Redis.
type RedisLock struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

// NewRedisLock creates a lock on RedisLockKey. A non-positive ttl uses DefaultLockTTL.
func NewRedisLock(client redis.UniversalClient, ttl time.Duration) *RedisLock {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &RedisLock{client: client, key: RedisLockKey, ttl: ttl}
}

func (l *RedisLock) Acquire(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !ok {
		return nil, ErrRunInProgress
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = releaseScript.Run(ctx, l.client, []string{l.key}, token).Err()
		})
	}, nil
}

// RedisSummaries is a SummaryStore backed by one Redis key.
type RedisSummaries struct {
	client redis.UniversalClient
	key    string
}

func NewRedisSummaries(client redis.UniversalClient) *RedisSummaries {
	return &RedisSummaries{client: client, key: RedisSummaryKey}
}

func (s *RedisSummaries) SaveLast(ctx context.Context, r *Result) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode run summary: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store run summary: %w", err)
	}
	return nil
}

func (s *RedisSummaries) Last(ctx context.Context) (*Result, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run summary: %w", err)
	}
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode run summary: %w", err)
	}
	return &r, nil
}

// NewRedisClient parses redisURL and verifies connectivity.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}
