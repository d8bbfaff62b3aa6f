// Package worker runs the goroutine pool that drives the crawl loop:
// claim a URL from the Scheduler, fetch it, extract links and text, feed
// discovered links back to the Frontier Writer, persist the text via the
// content Writer, and record the outcome in the Shared Index. Grounded on
// the teacher's internal/fetcher.WorkerPool: one goroutine per worker slot,
// a claim-or-backoff loop, and a single ProcessURL pipeline per claim —
// generalized here to claim from this repo's own Scheduler instead of a
// Postgres-backed frontier.Claim.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonesrussell/crawlfrontier/internal/content"
	"github.com/jonesrussell/crawlfrontier/internal/htmlfetch"
	"github.com/jonesrussell/crawlfrontier/internal/htmlparse"
	"github.com/jonesrussell/crawlfrontier/internal/index"
	"github.com/jonesrussell/crawlfrontier/internal/logger"
	"github.com/jonesrussell/crawlfrontier/internal/metrics"
	"github.com/jonesrussell/crawlfrontier/internal/scheduler"
	"github.com/jonesrussell/crawlfrontier/internal/writer"
)

const (
	defaultClaimRetryDelay = 250 * time.Millisecond

	visitedOutcomeFetched = "fetched"
	visitedOutcomeFailed  = "failed"
)

// Config configures the pool.
type Config struct {
	WorkerCount     int
	ClaimRetryDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.WorkerCount <= 0 {
		c.WorkerCount = 1
	}
	if c.ClaimRetryDelay <= 0 {
		c.ClaimRetryDelay = defaultClaimRetryDelay
	}
	return c
}

// Pool is a bounded set of worker goroutines, each running the claim ->
// fetch -> extract -> persist -> mark-visited pipeline (spec.md section
// 5: "hundreds to low thousands of concurrent logical workers per process
// multiplexing I/O").
type Pool struct {
	cfg       Config
	scheduler *scheduler.Scheduler
	writer    *writer.Writer
	fetcher   *htmlfetch.Fetcher
	parser    *htmlparse.Parser
	content   *content.Writer
	idx       *index.Index
	log       logger.Interface
	metrics   *metrics.Metrics
}

// Deps are the Pool's collaborators, all already constructed by the
// caller (cmd/run.go).
type Deps struct {
	Scheduler *scheduler.Scheduler
	Writer    *writer.Writer
	Fetcher   *htmlfetch.Fetcher
	Parser    *htmlparse.Parser
	Content   *content.Writer
	Index     *index.Index
	Log       logger.Interface
	Metrics   *metrics.Metrics
}

// New builds a Pool.
func New(cfg Config, d Deps) *Pool {
	log := d.Log
	if log == nil {
		log = logger.NewNop()
	}
	return &Pool{
		cfg:       cfg.withDefaults(),
		scheduler: d.Scheduler,
		writer:    d.Writer,
		fetcher:   d.Fetcher,
		parser:    d.Parser,
		content:   d.Content,
		idx:       d.Index,
		log:       log,
		metrics:   d.Metrics,
	}
}

// Run launches cfg.WorkerCount goroutines and blocks until every worker
// has returned. Workers return only once ctx is cancelled; an idle worker
// keeps polling the Scheduler.
func (p *Pool) Run(ctx context.Context) error {
	p.log.Info("starting worker pool", "worker_count", p.cfg.WorkerCount)

	var wg sync.WaitGroup
	for i := 0; i < p.cfg.WorkerCount; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			p.runWorker(ctx, workerID)
		}(i)
	}
	wg.Wait()

	p.log.Info("worker pool stopped")
	return nil
}

func (p *Pool) runWorker(ctx context.Context, workerID int) {
	workerName := fmt.Sprintf("worker-%d", workerID)
	log := p.log.WithComponent("worker").With("worker_id", workerName)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		task, err := p.scheduler.GetNextURL(ctx, workerName)
		switch {
		case err == nil:
			p.processTask(ctx, log, task)
		case isIdle(err):
			if p.sleepOrCancel(ctx) {
				return
			}
		default:
			log.Error("get_next_url failed", "error", err)
			if p.sleepOrCancel(ctx) {
				return
			}
		}
	}
}

func isIdle(err error) bool {
	return errors.Is(err, scheduler.ErrIdle)
}

func (p *Pool) sleepOrCancel(ctx context.Context) bool {
	timer := time.NewTimer(p.cfg.ClaimRetryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return true
	case <-timer.C:
		return false
	}
}

// processTask runs one claimed URL through the fetch -> extract ->
// persist -> mark-visited pipeline (analogous to the teacher's
// WorkerPool.ProcessURL, minus the robots/dead-URL machinery already
// handled upstream by the Scheduler and Politeness Oracle).
func (p *Pool) processTask(ctx context.Context, log logger.Interface, task scheduler.URLTask) {
	taskLog := log.WithURL(task.URL).WithDomain(task.Domain)

	result, err := p.fetcher.Fetch(ctx, task.URL)
	if err != nil {
		p.recordVisit(ctx, task.URL, 0, "", err)
		taskLog.Warn("fetch failed", "error", err)
		if p.metrics != nil {
			p.metrics.VisitedTotal.WithLabelValues(visitedOutcomeFailed).Inc()
		}
		return
	}

	extracted, parseErr := p.parser.Extract(result.FinalURL, result.Body)
	if parseErr != nil {
		p.recordVisit(ctx, task.URL, result.StatusCode, "", parseErr)
		taskLog.Warn("extract failed", "error", parseErr)
		if p.metrics != nil {
			p.metrics.VisitedTotal.WithLabelValues(visitedOutcomeFailed).Inc()
		}
		return
	}

	contentPath, saveErr := p.content.Save(ctx, task.URL, extracted.Text)
	if saveErr != nil {
		taskLog.Error("content save failed", "error", saveErr)
	}

	p.recordVisit(ctx, task.URL, result.StatusCode, contentPath, nil)
	if p.metrics != nil {
		p.metrics.VisitedTotal.WithLabelValues(visitedOutcomeFetched).Inc()
	}

	if len(extracted.Links) == 0 {
		return
	}

	if _, err := p.writer.AddURLs(ctx, toSubmissions(extracted.Links, task.Depth)); err != nil {
		taskLog.Error("add_urls failed", "error", err)
	}
}

func toSubmissions(links []string, sourceDepth int) []writer.Submission {
	subs := make([]writer.Submission, len(links))
	for i, link := range links {
		subs[i] = writer.Submission{URL: link, SourceDepth: sourceDepth}
	}
	return subs
}

func (p *Pool) recordVisit(ctx context.Context, rawURL string, status int, contentPath string, fetchErr error) {
	errMsg := ""
	if fetchErr != nil {
		errMsg = fetchErr.Error()
	}
	rec := index.VisitedRecord{
		URL:         rawURL,
		StatusCode:  status,
		FetchedAt:   time.Now(),
		ContentPath: contentPath,
		Error:       errMsg,
	}
	if err := p.idx.MarkVisited(ctx, rec); err != nil {
		p.log.Error("mark_visited failed", "url", rawURL, "error", err)
	}
}
