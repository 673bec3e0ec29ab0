package generator

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/bwmarrin/snowflake"
	"github.com/redis/go-redis/v9"
)

// Allocator hands out numbers that are never repeated. It must be safe for
// concurrent use; gaps are allowed.
type Allocator interface {
	Next(ctx context.Context) (int64, error)
}

// BlockAllocator can reserve n consecutive numbers in one round trip. It
// returns the first number of the block.
type BlockAllocator interface {
	Allocator
	NextBlock(ctx context.Context, n int) (int64, error)
}

// DefaultCounterKey is the Redis key backing the shared accession counter.
const DefaultCounterKey = "accession:counter"

type counterClient interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	IncrBy(ctx context.Context, key string, value int64) *redis.IntCmd
}

// RedisAllocator is a cluster-wide counter backed by Redis INCR. Numbers
// reserved by a batch that later fails are not returned, which leaves gaps.
type RedisAllocator struct {
	client counterClient
	key    string
}

func NewRedisAllocator(client redis.UniversalClient, key string) *RedisAllocator {
	return newRedisAllocator(client, key)
}

func newRedisAllocator(client counterClient, key string) *RedisAllocator {
	if key == "" {
		key = DefaultCounterKey
	}
	return &RedisAllocator{client: client, key: key}
}

func (a *RedisAllocator) Next(ctx context.Context) (int64, error) {
	n, err := a.client.Incr(ctx, a.key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr %s: %w", a.key, err)
	}
	return n, nil
}

func (a *RedisAllocator) NextBlock(ctx context.Context, n int) (int64, error) {
	if n <= 0 {
		return 0, fmt.Errorf("invalid block size %d", n)
	}
	last, err := a.client.IncrBy(ctx, a.key, int64(n)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incrby %s: %w", a.key, err)
	}
	return last - int64(n) + 1, nil
}

// SnowflakeAllocator issues time-ordered 63-bit ids. Each process needs its own
// node number.
type SnowflakeAllocator struct {
	node *snowflake.Node
}

func NewSnowflakeAllocator(nodeID int64) (*SnowflakeAllocator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", nodeID, err)
	}
	return &SnowflakeAllocator{node: node}, nil
}

func (a *SnowflakeAllocator) Next(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return a.node.Generate().Int64(), nil
}

// Counter is an in-process allocator. It is only unique within one process
// and suits tests and single-node tools.
type Counter struct {
	n atomic.Int64
}

// NewCounter returns a counter whose first number is start+1.
func NewCounter(start int64) *Counter {
	c := &Counter{}
	c.n.Store(start)
	return c
}

func (c *Counter) Next(ctx context.Context) (int64, error) {
	return c.n.Add(1), nil
}

func (c *Counter) NextBlock(ctx context.Context, n int) (int64, error) {
	if n <= 0 {
		return 0, fmt.Errorf("invalid block size %d", n)
	}
	return c.n.Add(int64(n)) - int64(n) + 1, nil
}
