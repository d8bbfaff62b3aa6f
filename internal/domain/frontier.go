// Package domain holds the core value types shared by the frontier store,
// shared index, politeness oracle and scheduler. Nothing here talks to
// Redis, the filesystem, or the network.
package domain

import "time"

// DomainMeta is the metadata the Shared Index holds for one registrable
// domain, keyed by "domain:{d}" (spec.md section 6).
type DomainMeta struct {
	Domain string

	FrontierPath   string
	FrontierOffset int64
	FrontierSize   int64

	NextFetchTime time.Time

	RobotsCached  bool
	RobotsExpires time.Time
	RobotsBody    string
	CrawlDelay    time.Duration

	IsExcluded bool

	// ClaimToken is the opaque identifier the current (or most recent)
	// claim_eligible_domain call stamped onto this domain, used the way the
	// teacher's internal/coordination.Redlock uses a lock token: not to
	// gate correctness (the ready/active move is already atomic) but to let
	// logs and diagnostics tell two overlapping claims of the same domain
	// apart after the fact.
	ClaimToken string
}

// Exhausted reports whether every byte of the domain's frontier file has
// been consumed.
func (m DomainMeta) Exhausted() bool {
	return m.FrontierOffset >= m.FrontierSize
}

// FrontierRecord is one line of a domain's append-only frontier file:
// "{url}|{depth}|{priority}|{added_timestamp}\n" (spec.md section 6).
type FrontierRecord struct {
	URL            string
	Depth          int
	Priority       float64
	AddedTimestamp time.Time
}

// VisitedRecord is the exact record of a URL actually fetched (or
// definitively failed), keyed by "visited:{hash16(url)}" (spec.md section 6).
type VisitedRecord struct {
	URL         string
	StatusCode  int
	FetchedAt   time.Time
	ContentPath string
	Error       string
}

// DefaultPriority is the priority assigned to newly discovered URLs absent
// any other signal (spec.md section 4.5 step 5a).
const DefaultPriority = 1.0
