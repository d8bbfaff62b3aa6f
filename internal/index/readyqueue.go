package index

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoEligibleDomain is returned by ClaimEligibleDomain when the ready
// queue has nothing at or before now (spec.md section 4.1: "if none
// exists, returns none").
var ErrNoEligibleDomain = errors.New("index: no eligible domain")

// ClaimEligibleDomain atomically moves one domain with next_fetch_time <=
// now from ready into active (spec.md section 4.1). It returns
// ErrNoEligibleDomain, not a transport error, when the queue is empty —
// callers should not retry this outcome through the retry budget.
func (idx *Index) ClaimEligibleDomain(ctx context.Context, now time.Time) (domain string, err error) {
	runErr := idx.withRetry(ctx, func() error {
		v, e := idx.scripts.claimEligibleDomain.Run(
			ctx, idx.rdb,
			[]string{idx.readyKey(), idx.activeKey()},
			unixScore(now),
		).Result()
		if errors.Is(e, redis.Nil) {
			// The script's Lua false arrives as a nil reply.
			domain = ""
			return nil
		}
		if e != nil {
			return e
		}
		if b, ok := v.(bool); ok && !b {
			domain = ""
			return nil
		}
		s, ok := v.(string)
		if !ok {
			return errors.New("index: unexpected claim script result type")
		}
		domain = s
		return nil
	})
	if runErr != nil {
		return "", runErr
	}
	if domain == "" {
		return "", ErrNoEligibleDomain
	}
	return domain, nil
}

// ReleaseDomain removes d from active and, unless requeue is false,
// re-inserts it into ready scored by nextTime (spec.md section 4.1:
// "release_domain(domain, next_time) ... If the domain has no remaining
// URLs, it is removed from Ready instead").
func (idx *Index) ReleaseDomain(ctx context.Context, d string, nextTime time.Time, requeue bool) error {
	drop := "0"
	if !requeue {
		drop = "1"
	}
	return idx.withRetry(ctx, func() error {
		return idx.scripts.releaseDomain.Run(
			ctx, idx.rdb,
			[]string{idx.readyKey(), idx.activeKey()},
			d, unixScore(nextTime), drop,
		).Err()
	})
}

// unixScore converts t to fractional Unix seconds, the ready queue's score
// unit, so sub-second crawl delays are not rounded away.
func unixScore(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// EnsureReady inserts d into ready with the given score, but only if it is
// not excluded, not already ready, and not currently active (spec.md
// section 4.5 step 5c). It is a best-effort convenience wrapper, not a
// single atomic script, because the exclusion check reads domain metadata
// that already lives in a separate hash. The Frontier Writer calls it after
// frontierstore.Store.Append has returned, so the domain's frontier write
// mutex is no longer held at that point.
func (idx *Index) EnsureReady(ctx context.Context, d string, score time.Time) error {
	meta, ok, err := idx.GetDomainMeta(ctx, d)
	if err != nil {
		return err
	}
	if ok && meta.IsExcluded {
		return nil
	}

	return idx.withRetry(ctx, func() error {
		isActive, e := idx.rdb.SIsMember(ctx, idx.activeKey(), d).Result()
		if e != nil {
			return e
		}
		if isActive {
			return nil
		}
		_, e = idx.rdb.ZAddNX(ctx, idx.readyKey(), redis.Z{Score: unixScore(score), Member: d}).Result()
		return e
	})
}

// RemoveFromReady removes d from the ready queue unconditionally, used
// when an exclusion is applied after URLs were already enqueued (spec.md
// section 4.3: "a domain with is_excluded = true is never present in the
// ready queue").
func (idx *Index) RemoveFromReady(ctx context.Context, d string) error {
	return idx.withRetry(ctx, func() error {
		return idx.rdb.ZRem(ctx, idx.readyKey(), d).Err()
	})
}

// IsReady reports whether d currently sits in the ready queue, exposed for
// tests that assert invariants 2 and 3 from spec.md section 8.
func (idx *Index) IsReady(ctx context.Context, d string) (bool, error) {
	var score float64
	err := idx.withRetry(ctx, func() error {
		s, e := idx.rdb.ZScore(ctx, idx.readyKey(), d).Result()
		if errors.Is(e, redis.Nil) {
			score = -1
			return nil
		}
		if e != nil {
			return e
		}
		score = s
		return nil
	})
	if err != nil {
		return false, err
	}
	return score >= 0, nil
}

// IsActive reports whether d is currently claimed by a worker.
func (idx *Index) IsActive(ctx context.Context, d string) (bool, error) {
	var active bool
	err := idx.withRetry(ctx, func() error {
		v, e := idx.rdb.SIsMember(ctx, idx.activeKey(), d).Result()
		if e != nil {
			return e
		}
		active = v
		return nil
	})
	return active, err
}

// ReadyCount and ActiveCount expose the size of the ready queue and
// active set, used by the run loop's idle-shutdown watcher (spec.md
// section 5: "if both [ready and active] are empty, the crawler has no
// work and reports 'idle'; a supervisor decides whether to terminate").
func (idx *Index) ReadyCount(ctx context.Context) (int64, error) {
	var n int64
	err := idx.withRetry(ctx, func() error {
		v, e := idx.rdb.ZCard(ctx, idx.readyKey()).Result()
		if e != nil {
			return e
		}
		n = v
		return nil
	})
	return n, err
}

func (idx *Index) ActiveCount(ctx context.Context) (int64, error) {
	var n int64
	err := idx.withRetry(ctx, func() error {
		v, e := idx.rdb.SCard(ctx, idx.activeKey()).Result()
		if e != nil {
			return e
		}
		n = v
		return nil
	})
	return n, err
}
