// Package scheduler implements the atomic claim-one-domain protocol
// (spec.md section 4.4): get_next_url selects an eligible domain, reads
// its next URL, updates its next-eligible time, and returns the URL.
// Grounded on the teacher's internal/coordination.Redlock for the
// claim/release shape, and on spec.md section 9's redesign guidance
// ("Dynamic attribute mutation on bodies -> typed fields: model this as
// explicit fields on a domain-claim guard object whose lifetime equals
// the claim") for domainClaim below.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/crawlfrontier/internal/domain"
	"github.com/jonesrussell/crawlfrontier/internal/frontierstore"
	"github.com/jonesrussell/crawlfrontier/internal/index"
	"github.com/jonesrussell/crawlfrontier/internal/logger"
	"github.com/jonesrussell/crawlfrontier/internal/metrics"
	"github.com/jonesrussell/crawlfrontier/internal/politeness"
)

// backoffAttempts bounds how many times get_next_url retries an empty
// ready queue before returning ErrIdle (spec.md section 4.4 step 2: "wait
// a short back-off ... and retry up to a bounded number of attempts
// before returning none").
const (
	backoffAttempts = 3
	backoffDelay    = 100 * time.Millisecond

	// maxSkipsPerCall bounds how many consecutive robots-disallowed URLs
	// get_next_url will skip through before giving up for this call. This
	// does not share the idle back-off budget: a skip found a domain and
	// made progress, it just wasn't a URL worth returning.
	maxSkipsPerCall = 64
)

// ErrIdle is returned when no domain is currently eligible after
// exhausting the claim back-off budget; the worker loop treats this as
// "idle, try again" (spec.md section 7).
var ErrIdle = errors.New("scheduler: no eligible domain, idle")

// URLTask is one unit of work returned by GetNextURL.
type URLTask struct {
	URL    string
	Domain string
	Depth  int
}

// Scheduler implements get_next_url.
type Scheduler struct {
	idx     *index.Index
	store   *frontierstore.Store
	oracle  *politeness.Oracle
	log     logger.Interface
	metrics *metrics.Metrics
}

// New builds a Scheduler over the given collaborators. metrics may be nil.
func New(idx *index.Index, store *frontierstore.Store, oracle *politeness.Oracle, log logger.Interface, m *metrics.Metrics) *Scheduler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Scheduler{idx: idx, store: store, oracle: oracle, log: log, metrics: m}
}

// domainClaim is the typed claim guard: it owns the exclusive right to
// read one domain's frontier until Release runs, and Release always runs
// exactly once regardless of which exit path (success, skip, exhaustion,
// or caller cancellation) triggered it.
type domainClaim struct {
	idx      *index.Index
	domain   string
	token    string
	released bool
}

func (c *domainClaim) Release(ctx context.Context, nextTime time.Time, requeue bool) error {
	if c.released {
		return nil
	}
	c.released = true
	cleared := ""
	_ = c.idx.SetDomainMeta(ctx, c.domain, index.DomainMetaFields{ClaimToken: &cleared})
	return c.idx.ReleaseDomain(ctx, c.domain, nextTime, requeue)
}

// GetNextURL implements spec.md section 4.4's algorithm. It never returns
// an error for "no work right now" — that case is ErrIdle, a normal
// return per section 9 ("Exceptions for control flow -> result types").
func (s *Scheduler) GetNextURL(ctx context.Context, workerID string) (URLTask, error) {
	skips := 0
	for attempt := 0; attempt < backoffAttempts; {
		task, outcome, err := s.tryOnce(ctx)
		if err != nil {
			return URLTask{}, err
		}

		switch outcome {
		case outcomeFound:
			return task, nil
		case outcomeSkippedDisallowed:
			// Step 5: release and "loop to step 2" immediately — this
			// made progress (a URL was consumed), so it doesn't spend
			// the idle back-off budget, only its own bounded budget.
			skips++
			if skips >= maxSkipsPerCall {
				return URLTask{}, ErrIdle
			}
			continue
		case outcomeNoEligibleDomain, outcomeExhausted:
			if s.metrics != nil {
				s.metrics.ClaimBackoffTotal.Inc()
			}
			attempt++
			if attempt >= backoffAttempts {
				continue // loop condition ends the for immediately
			}
			timer := time.NewTimer(backoffDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return URLTask{}, ctx.Err()
			case <-timer.C:
			}
		}
	}
	return URLTask{}, ErrIdle
}

type claimOutcome int

const (
	outcomeFound claimOutcome = iota
	outcomeNoEligibleDomain
	outcomeExhausted
	outcomeSkippedDisallowed
)

// tryOnce performs one claim->read->decide cycle per spec.md section 4.4
// steps 2-6.
func (s *Scheduler) tryOnce(ctx context.Context) (task URLTask, outcome claimOutcome, err error) {
	now := time.Now()
	d, err := s.idx.ClaimEligibleDomain(ctx, now)
	if err != nil {
		if errors.Is(err, index.ErrNoEligibleDomain) {
			return URLTask{}, outcomeNoEligibleDomain, nil
		}
		return URLTask{}, outcomeNoEligibleDomain, err
	}

	if s.metrics != nil {
		s.metrics.DomainsClaimedTotal.Inc()
	}

	claim := &domainClaim{idx: s.idx, domain: d, token: uuid.NewString()}
	// Every exit path below releases the claim exactly once: this defer
	// is the backstop for cancellation and error returns; the happy
	// paths call Release explicitly with the meaningful next_time first.
	defer func() {
		_ = claim.Release(context.Background(), time.Now(), true)
	}()

	meta, metaOK, err := s.idx.GetDomainMeta(ctx, d)
	if err != nil {
		return URLTask{}, outcomeNoEligibleDomain, err
	}
	if metaOK && meta.ClaimToken != "" {
		// The ready->active move is already atomic, so this can only
		// happen if a previous claim's Release never ran (process crash
		// mid-claim); it is a diagnostic signal, not a correctness gate.
		s.log.Warn("claiming domain with a stale, unreleased claim token",
			"domain", d, "stale_token", meta.ClaimToken, "new_token", claim.token)
	}
	if setErr := s.idx.SetDomainMeta(ctx, d, index.DomainMetaFields{ClaimToken: &claim.token}); setErr != nil {
		return URLTask{}, outcomeNoEligibleDomain, setErr
	}
	if !metaOK || meta.Exhausted() {
		if s.metrics != nil {
			s.metrics.FrontierExhaustedTotal.Inc()
		}
		if relErr := claim.Release(ctx, now, false); relErr != nil {
			return URLTask{}, outcomeExhausted, relErr
		}
		return URLTask{}, outcomeExhausted, nil
	}

	rec, newOffset, readErr := s.store.ReadNext(d, meta.FrontierOffset)
	if readErr != nil {
		if errors.Is(readErr, frontierstore.ErrEndOfFrontier) {
			if relErr := claim.Release(ctx, now, false); relErr != nil {
				return URLTask{}, outcomeExhausted, relErr
			}
			return URLTask{}, outcomeExhausted, nil
		}
		return URLTask{}, outcomeExhausted, readErr
	}

	offset := newOffset
	if setErr := s.idx.SetDomainMeta(ctx, d, index.DomainMetaFields{FrontierOffset: &offset}); setErr != nil {
		return URLTask{}, outcomeExhausted, setErr
	}

	allowed, reason, allowErr := s.oracle.IsAllowed(ctx, rec.URL)
	if allowErr != nil {
		return URLTask{}, outcomeExhausted, allowErr
	}

	if !allowed {
		// Release immediately eligible without consuming politeness
		// delay (spec.md section 4.4 step 5 and the Open Questions
		// resolution in DESIGN.md: skipped-robots URLs never consume
		// the delay, since no network request was issued).
		if s.metrics != nil {
			switch reason {
			case politeness.SkipReasonExcluded:
				s.metrics.URLsSkippedExcludedTotal.Inc()
			default:
				s.metrics.URLsSkippedRobotsTotal.Inc()
			}
		}
		if relErr := claim.Release(ctx, now, true); relErr != nil {
			return URLTask{}, outcomeSkippedDisallowed, relErr
		}
		return URLTask{}, outcomeSkippedDisallowed, nil
	}

	delay, delayErr := s.oracle.Delay(ctx, d)
	if delayErr != nil {
		return URLTask{}, outcomeExhausted, delayErr
	}
	if relErr := claim.Release(ctx, now.Add(delay), true); relErr != nil {
		return URLTask{}, outcomeExhausted, relErr
	}

	if s.metrics != nil {
		s.metrics.URLsAllowedTotal.Inc()
	}

	return URLTask{URL: rec.URL, Domain: d, Depth: rec.Depth}, outcomeFound, nil
}

// GetDomainMetaSnapshot exposes domain metadata for diagnostics and tests
// without leaking the Scheduler's internal claim machinery.
func (s *Scheduler) GetDomainMetaSnapshot(ctx context.Context, d string) (domain.DomainMeta, bool, error) {
	return s.idx.GetDomainMeta(ctx, d)
}
