package index

import (
	"context"
	"hash/fnv"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/redis/go-redis/v9"
)

// seenFilter computes bit positions for the Redis-backed seen set (spec.md
// section 3: "approximate membership structure ... sized for the expected
// corpus with a bounded false-positive rate (target 0.1% at 160M
// insertions)"). The index must be shared across processes (section 5:
// "sharing the index server"), which rules out bits-and-blooms/bloom's
// in-memory bitset; this instead stores the same m/k sizing computed by
// bloom.EstimateParameters against Redis SETBIT/GETBIT, executed
// atomically via seenTestAndSetLua.
type seenFilter struct {
	m uint // number of bits
	k uint // number of hash functions
}

func newSeenFilter(capacity uint, falsePositiveRate float64) *seenFilter {
	m, k := bloom.EstimateParameters(capacity, falsePositiveRate)
	return &seenFilter{m: m, k: k}
}

// positions computes the k bit offsets for url using the standard
// double-hashing scheme (Kirsch-Mitzenmacher): position_i = (h1 + i*h2) mod m.
func (f *seenFilter) positions(url string) []uint64 {
	h1, h2 := hashPair(url)
	offsets := make([]uint64, f.k)
	for i := uint(0); i < f.k; i++ {
		offsets[i] = (h1 + uint64(i)*h2) % uint64(f.m)
	}
	return offsets
}

func hashPair(s string) (uint64, uint64) {
	h1 := fnv.New64a()
	_, _ = h1.Write([]byte(s))
	sum1 := h1.Sum64()

	h2 := fnv.New64()
	_, _ = h2.Write([]byte(s))
	sum2 := h2.Sum64()
	if sum2 == 0 {
		sum2 = 1
	}
	return sum1, sum2
}

// SeenAdd inserts url into the seen set and reports whether it was new.
// Per spec.md section 4.1 ("seen_add(url) -> was_new") and invariant 6
// ("concurrent add_urls calls ... total count of newly added survivors ...
// exactly 1"), the test-and-set must be atomic across all k bits, which is
// why it runs as a single Lua script rather than k separate SETBIT calls.
func (idx *Index) SeenAdd(ctx context.Context, url string) (wasNew bool, err error) {
	positions := idx.bloom.positions(url)
	args := make([]any, len(positions))
	for i, p := range positions {
		args[i] = p
	}

	var result int64
	runErr := idx.withRetry(ctx, func() error {
		v, e := idx.scripts.seenTestAndSet.Run(ctx, idx.rdb, []string{idx.seenBloomKey()}, args...).Int64()
		if e != nil {
			return e
		}
		result = v
		return nil
	})
	if runErr != nil {
		return false, runErr
	}
	return result == 1, nil
}

// SeenContains reports whether url is probably already present. False
// positives are tolerated (spec.md section 3); false negatives must not
// occur, which GETBIT over every hash position preserves.
func (idx *Index) SeenContains(ctx context.Context, url string) (bool, error) {
	positions := idx.bloom.positions(url)
	bloomKey := idx.seenBloomKey()

	contains := true
	err := idx.withRetry(ctx, func() error {
		pipe := idx.rdb.Pipeline()
		cmds := make([]*redis.IntCmd, len(positions))
		for i, p := range positions {
			cmds[i] = pipe.GetBit(ctx, bloomKey, int64(p))
		}
		if _, e := pipe.Exec(ctx); e != nil {
			return e
		}
		for _, c := range cmds {
			v, e := c.Result()
			if e != nil {
				return e
			}
			if v == 0 {
				contains = false
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return contains, nil
}
