// Package politeness implements the Politeness Oracle (spec.md section
// 4.3): robots.txt acquisition and caching, per-domain crawl delay, and
// the manual exclusion list. Adapted from the teacher's
// internal/fetcher.RobotsChecker, but the cache lives in the Shared Index
// instead of a process-local map so every worker process in the pod
// agrees on the same rules, and concurrent fetches collapse with
// golang.org/x/sync/singleflight instead of a bare mutex.
package politeness

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"

	"github.com/jonesrussell/crawlfrontier/internal/index"
	"github.com/jonesrussell/crawlfrontier/internal/logger"
	"github.com/jonesrussell/crawlfrontier/internal/urlnorm"
)

const (
	robotsTxtPath          = "/robots.txt"
	maxRobotsBodyBytes     = 512 * 1024
	defaultRobotsCacheTTL  = 24 * time.Hour
	failedFetchCacheTTL    = time.Hour
	statusSuccessLow       = 200
	statusSuccessHigh      = 300
)

// Config configures the Oracle.
type Config struct {
	UserAgent      string
	MinCrawlDelay  time.Duration
	HTTPClient     *http.Client
	RobotsCacheTTL time.Duration
	// OnRobotsFetch, if set, is called once per robots.txt acquisition
	// attempt with a result label ("cached", "parsed", "allow_all"),
	// letting callers wire a metrics counter without this package
	// importing the metrics package directly.
	OnRobotsFetch func(result string)
}

// Oracle answers is_allowed and get_delay queries per spec.md section 4.3.
type Oracle struct {
	idx        *index.Index
	httpClient *http.Client
	userAgent  string
	minDelay   time.Duration
	cacheTTL   time.Duration
	log        logger.Interface
	onFetch    func(result string)

	sf singleflight.Group
}

// New builds an Oracle backed by idx.
func New(idx *index.Index, cfg Config, log logger.Interface) *Oracle {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.RobotsCacheTTL == 0 {
		cfg.RobotsCacheTTL = defaultRobotsCacheTTL
	}
	if cfg.MinCrawlDelay == 0 {
		cfg.MinCrawlDelay = 70 * time.Second
	}
	if log == nil {
		log = logger.NewNop()
	}
	onFetch := cfg.OnRobotsFetch
	if onFetch == nil {
		onFetch = func(string) {}
	}
	return &Oracle{
		idx:        idx,
		httpClient: cfg.HTTPClient,
		userAgent:  cfg.UserAgent,
		minDelay:   cfg.MinCrawlDelay,
		cacheTTL:   cfg.RobotsCacheTTL,
		log:        log,
		onFetch:    onFetch,
	}
}

// SkipReason names which politeness check rejected a URL, so callers can
// count exclusion skips separately from robots.txt skips (spec.md section
// 7's urls_skipped_excluded_total vs urls_skipped_robots_total counters).
type SkipReason int

const (
	// SkipReasonNone means the URL was allowed.
	SkipReasonNone SkipReason = iota
	// SkipReasonExcluded means the domain is on the exclusion list.
	SkipReasonExcluded
	// SkipReasonRobots means robots.txt disallows this path for our agent.
	SkipReasonRobots
)

// IsAllowed reports whether rawURL may be fetched, and if not, which check
// rejected it: exclusion always wins over robots.txt (spec.md section 4.3:
// "is_allowed returns false for any URL whose domain is excluded,
// independent of robots.txt").
func (o *Oracle) IsAllowed(ctx context.Context, rawURL string) (bool, SkipReason, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false, SkipReasonNone, fmt.Errorf("politeness: parse url: %w", err)
	}

	d, err := urlnorm.RegistrableDomain(rawURL)
	if err != nil {
		return false, SkipReasonNone, fmt.Errorf("politeness: registrable domain: %w", err)
	}

	meta, ok, err := o.idx.GetDomainMeta(ctx, d)
	if err != nil {
		return false, SkipReasonNone, err
	}
	if ok && meta.IsExcluded {
		return false, SkipReasonExcluded, nil
	}

	rules, err := o.ensureRobots(ctx, d, parsed.Scheme)
	if err != nil {
		return false, SkipReasonNone, err
	}
	if rules == nil {
		return true, SkipReasonNone, nil
	}
	if rules.TestAgent(parsed.Path, o.userAgent) {
		return true, SkipReasonNone, nil
	}
	return false, SkipReasonRobots, nil
}

// Delay returns the effective crawl delay for domain d, falling back to
// the configured minimum if robots.txt has not yet been fetched.
func (o *Oracle) Delay(ctx context.Context, d string) (time.Duration, error) {
	meta, ok, err := o.idx.GetDomainMeta(ctx, d)
	if err != nil {
		return 0, err
	}
	if !ok || meta.CrawlDelay == 0 {
		return o.minDelay, nil
	}
	return meta.CrawlDelay, nil
}

// ensureRobots returns the parsed robots rules for d, fetching and caching
// them if absent or expired. A nil *robotstxt.RobotsData means allow-all.
func (o *Oracle) ensureRobots(ctx context.Context, d, scheme string) (*robotstxt.RobotsData, error) {
	meta, ok, err := o.idx.GetDomainMeta(ctx, d)
	if err != nil {
		return nil, err
	}
	if ok && meta.RobotsCached && time.Now().Before(meta.RobotsExpires) {
		o.onFetch("cached")
		return parseCachedBody(meta.RobotsBody)
	}

	// Collapse concurrent fetchers for the same domain into one request
	// (spec.md section 4.3: "only one robots.txt fetch per (domain,
	// refresh-window) is in flight at a time").
	v, err, _ := o.sf.Do(d, func() (any, error) {
		return o.fetchAndCache(ctx, d, scheme)
	})
	if err != nil {
		return nil, err
	}
	rules, _ := v.(*robotstxt.RobotsData)
	return rules, nil
}

func parseCachedBody(body string) (*robotstxt.RobotsData, error) {
	if body == "" {
		return nil, nil
	}
	rules, err := robotstxt.FromBytes([]byte(body))
	if err != nil {
		return nil, nil
	}
	return rules, nil
}

// fetchAndCache implements spec.md section 4.3 steps 2-5: GET http, fall
// back to https on 5xx/network error, treat 4xx as allow-all, and cache a
// permissive allow-all with a short expiry if both attempts fail.
func (o *Oracle) fetchAndCache(ctx context.Context, d, preferredScheme string) (*robotstxt.RobotsData, error) {
	body, status, err := o.fetch(ctx, "http://"+d+robotsTxtPath)
	if err != nil || isServerErrorOrNetwork(status, err) {
		body, status, err = o.fetch(ctx, "https://"+d+robotsTxtPath)
	}

	if err != nil {
		o.log.Warn("robots fetch failed, allowing all", "domain", d, "error", err)
		o.onFetch("allow_all")
		return nil, o.cacheAllowAll(ctx, d, failedFetchCacheTTL)
	}

	if isServerErrorOrNetwork(status, nil) {
		// Both attempts ended in a network error or 5xx: allow all with
		// the same short expiry as a network failure.
		o.onFetch("allow_all")
		return nil, o.cacheAllowAll(ctx, d, failedFetchCacheTTL)
	}

	if status < statusSuccessLow || status >= statusSuccessHigh {
		// 4xx (or any other non-2xx, non-5xx answer): allow all with the
		// normal cache TTL.
		o.onFetch("allow_all")
		return nil, o.cacheAllowAll(ctx, d, o.cacheTTL)
	}

	rules, parseErr := robotstxt.FromBytes(body)
	if parseErr != nil {
		o.onFetch("allow_all")
		return nil, o.cacheAllowAll(ctx, d, failedFetchCacheTTL)
	}
	o.onFetch("parsed")

	delay := o.minDelay
	if group := rules.FindGroup(o.userAgent); group != nil && group.CrawlDelay > o.minDelay {
		delay = group.CrawlDelay
	}

	cached := true
	expires := time.Now().Add(o.cacheTTL)
	bodyStr := string(body)
	if setErr := o.idx.SetDomainMeta(ctx, d, index.DomainMetaFields{
		RobotsCached:  &cached,
		RobotsExpires: &expires,
		RobotsBody:    &bodyStr,
		CrawlDelay:    &delay,
	}); setErr != nil {
		return nil, setErr
	}

	return rules, nil
}

func (o *Oracle) cacheAllowAll(ctx context.Context, d string, ttl time.Duration) error {
	cached := true
	expires := time.Now().Add(ttl)
	empty := ""
	delay := o.minDelay
	return o.idx.SetDomainMeta(ctx, d, index.DomainMetaFields{
		RobotsCached:  &cached,
		RobotsExpires: &expires,
		RobotsBody:    &empty,
		CrawlDelay:    &delay,
	})
}

func isServerErrorOrNetwork(status int, err error) bool {
	if err != nil {
		return true
	}
	return status >= http.StatusInternalServerError
}

func (o *Oracle) fetch(ctx context.Context, robotsURL string) (body []byte, status int, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, http.NoBody)
	if err != nil {
		return nil, 0, fmt.Errorf("politeness: create request: %w", err)
	}
	req.Header.Set("User-Agent", o.userAgent)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("politeness: fetch %s: %w", robotsURL, err)
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, maxRobotsBodyBytes)
	body, err = io.ReadAll(limited)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("politeness: read body: %w", err)
	}
	return body, resp.StatusCode, nil
}
