package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Denylist records applied action tokens until they expire.
//
// Claim is a single check-and-set: of any number of concurrent claims for the
// same key, exactly one reports true. Release hands a claimed key back when
// the operation it guarded did not commit.
type Denylist interface {
	Claim(ctx context.Context, key string, until time.Time) (bool, error)
	Release(ctx context.Context, key string) error
}

// MemoryDenylist is a process-local denylist.
type MemoryDenylist struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryDenylist creates an empty in-memory denylist. A nil clock means time.Now.
func NewMemoryDenylist(clock func() time.Time) *MemoryDenylist {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryDenylist{entries: make(map[string]time.Time), now: clock}
}

// Claim records key until the given instant unless a live entry already exists.
func (d *MemoryDenylist) Claim(_ context.Context, key string, until time.Time) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	for k, exp := range d.entries {
		if now.After(exp) {
			delete(d.entries, k)
		}
	}
	if _, listed := d.entries[key]; listed {
		return false, nil
	}
	d.entries[key] = until
	return true, nil
}

// Release drops key.
func (d *MemoryDenylist) Release(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.entries, key)
	return nil
}

const redisDenylistPrefix = "snapgraph:action-token:"

// RedisDenylist shares the denylist between processes.
type RedisDenylist struct {
	client *redis.Client
}

// NewRedisDenylist parses a redis:// URL and returns a denylist backed by it.
func NewRedisDenylist(ctx context.Context, url string) (*RedisDenylist, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisDenylist{client: client}, nil
}

// NewRedisDenylistFromClient wraps an existing client.
func NewRedisDenylistFromClient(client *redis.Client) *RedisDenylist {
	return &RedisDenylist{client: client}
}

// Claim sets key with NX and EXAT so only one caller wins. Entries expire at
// until, clamped to at least one second ahead.
func (d *RedisDenylist) Claim(ctx context.Context, key string, until time.Time) (bool, error) {
	if earliest := time.Now().Add(time.Second); until.Before(earliest) {
		until = earliest
	}
	err := d.client.SetArgs(ctx, redisDenylistPrefix+key, 1, redis.SetArgs{Mode: "NX", ExpireAt: until}).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Release deletes key.
func (d *RedisDenylist) Release(ctx context.Context, key string) error {
	return d.client.Del(ctx, redisDenylistPrefix+key).Err()
}

// Close releases the redis connection.
func (d *RedisDenylist) Close() error {
	return d.client.Close()
}

var (
	_ Denylist = (*MemoryDenylist)(nil)
	_ Denylist = (*RedisDenylist)(nil)
)
