// Package index implements the Shared Index (spec.md section 4.1): the
// authoritative, cross-process store for domain metadata, the ready queue,
// the active set, the seen set, and visited records. Adapted from the
// teacher's internal/queue.StreamsClient connection-setup pattern and its
// internal/coordination.Redlock use of redis.NewScript for atomic
// multi-key transactions.
package index

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/crawlfrontier/internal/retry"
)

const defaultConnectTimeout = 2 * time.Second

// Config configures the Shared Index's Redis connection.
type Config struct {
	Addr     string
	Password string `json:"-"`
	DB       int
	// KeyPrefix namespaces every key this index writes (default "frontier").
	KeyPrefix string
	// SeenCapacity and SeenFalsePositiveRate size the seen-set bloom filter.
	// Defaults match spec.md section 3: "0.1% at 160M insertions".
	SeenCapacity        uint
	SeenFalsePositiveRate float64
	// RetryConfig governs transient transport error retries (spec.md
	// section 7: "retried ... up to a bounded budget").
	RetryConfig retry.Config
}

// withDefaults fills zero-value Config fields with the defaults implied by
// spec.md.
func withDefaults(cfg Config) Config {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "frontier"
	}
	if cfg.SeenCapacity == 0 {
		cfg.SeenCapacity = 160_000_000
	}
	if cfg.SeenFalsePositiveRate == 0 {
		cfg.SeenFalsePositiveRate = 0.001
	}
	if cfg.RetryConfig.MaxAttempts == 0 {
		cfg.RetryConfig = retry.DefaultConfig()
	}
	return cfg
}

// Index is the Shared Index client. One Index is shared by every worker in
// a process; per spec.md section 5 ("each worker holds its own pooled
// connection"), the underlying redis.Client already pools connections
// internally, so callers never need a client-side lock across operations.
type Index struct {
	rdb    *redis.Client
	cfg    Config
	bloom  *seenFilter
	scripts scripts
}

// New connects to Redis and prepares the Shared Index. It pings immediately
// so construction fails fast on an unreachable index (spec.md section 6:
// "index unreachable" is a fatal startup condition).
func New(ctx context.Context, cfg Config) (*Index, error) {
	cfg = withDefaults(cfg)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("index: connect to redis at %s: %w", cfg.Addr, err)
	}

	return &Index{
		rdb:     rdb,
		cfg:     cfg,
		bloom:   newSeenFilter(cfg.SeenCapacity, cfg.SeenFalsePositiveRate),
		scripts: newScripts(),
	}, nil
}

// NewFromClient wraps an existing *redis.Client, used by tests against
// miniredis.
func NewFromClient(rdb *redis.Client, cfg Config) *Index {
	cfg = withDefaults(cfg)
	return &Index{
		rdb:     rdb,
		cfg:     cfg,
		bloom:   newSeenFilter(cfg.SeenCapacity, cfg.SeenFalsePositiveRate),
		scripts: newScripts(),
	}
}

// Close releases the underlying Redis connection pool.
func (idx *Index) Close() error {
	return idx.rdb.Close()
}

func (idx *Index) domainKey(domain string) string {
	return fmt.Sprintf("%s:domain:%s", idx.cfg.KeyPrefix, domain)
}

func (idx *Index) readyKey() string {
	return idx.cfg.KeyPrefix + ":domains:ready"
}

func (idx *Index) activeKey() string {
	return idx.cfg.KeyPrefix + ":domains:active"
}

func (idx *Index) seenBloomKey() string {
	return idx.cfg.KeyPrefix + ":seen:bloom"
}

func (idx *Index) visitedKey(hash16 string) string {
	return fmt.Sprintf("%s:visited:%s", idx.cfg.KeyPrefix, hash16)
}

func (idx *Index) visitedByTimeKey() string {
	return idx.cfg.KeyPrefix + ":visited:by_time"
}

// withRetry runs op with the index's configured retry budget, per spec.md
// section 7's transient-index-error policy.
func (idx *Index) withRetry(ctx context.Context, op func() error) error {
	return retry.Do(ctx, idx.cfg.RetryConfig, op)
}
