package index

import "github.com/redis/go-redis/v9"

// scripts holds the Lua scripts backing the Shared Index's atomic
// operations. Grounded on the teacher's internal/coordination.Redlock,
// which builds redis.NewScript instances for its compare-and-delete and
// compare-and-extend primitives; the same pattern here replaces lock
// tokens with domain claim semantics.
type scripts struct {
	claimEligibleDomain *redis.Script
	releaseDomain       *redis.Script
	seenTestAndSet      *redis.Script
}

func newScripts() scripts {
	return scripts{
		claimEligibleDomain: redis.NewScript(claimEligibleDomainLua),
		releaseDomain:       redis.NewScript(releaseDomainLua),
		seenTestAndSet:      redis.NewScript(seenTestAndSetLua),
	}
}

// claimEligibleDomainLua atomically pops the lowest-scored ready domain
// with score <= now and moves it into the active set (spec.md section
// 4.1: "atomically pops one domain D from Ready ... and inserts D into
// Active ... implemented as a single transactional script to prevent two
// workers claiming the same domain").
//
// KEYS[1] = ready zset key
// KEYS[2] = active set key
// ARGV[1] = now (fractional unix seconds)
const claimEligibleDomainLua = `
local candidates = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, 1)
if #candidates == 0 then
	return false
end
local domain = candidates[1]
redis.call('ZREM', KEYS[1], domain)
redis.call('SADD', KEYS[2], domain)
return domain
`

// releaseDomainLua removes a domain from active and, unless the caller
// signals exhaustion (ARGV[3] == "1"), re-inserts it into ready scored by
// the new next-eligible time (spec.md section 4.1: "release_domain").
//
// KEYS[1] = ready zset key
// KEYS[2] = active set key
// ARGV[1] = domain
// ARGV[2] = next_time (fractional unix seconds)
// ARGV[3] = "1" if the domain should not be re-queued (exhausted or excluded)
const releaseDomainLua = `
redis.call('SREM', KEYS[2], ARGV[1])
if ARGV[3] == '1' then
	redis.call('ZREM', KEYS[1], ARGV[1])
else
	redis.call('ZADD', KEYS[1], ARGV[2], ARGV[1])
end
return 1
`

// seenTestAndSetLua performs a linearizable test-and-set over the k bit
// positions of a URL's bloom filter entry (spec.md section 5: "seen_add is
// linearizable at the index; two concurrent add attempts of the same URL
// produce exactly one 'new' and one 'already seen' result").
//
// KEYS[1] = bloom bitstring key
// ARGV[1..k] = bit offsets
//
// Returns 1 if the URL was new (at least one bit was previously unset),
// 0 if all bits were already set (probably already seen).
const seenTestAndSetLua = `
local wasNew = 0
for i = 1, #ARGV do
	local bit = redis.call('SETBIT', KEYS[1], ARGV[i], 1)
	if bit == 0 then
		wasNew = 1
	end
end
return wasNew
`
