// Package writer implements the Frontier Writer (spec.md section 4.5):
// add_urls ingests newly discovered URLs, normalizes and dedup-filters
// them, appends them to per-domain frontier files, and maintains the
// Shared Index's counters and ready-queue membership. Grounded on the
// teacher's internal/frontier.NormalizeURL call sites in
// internal/fetcher/worker.go, which feed discovered links back into the
// frontier the same way this package's AddURLs does.
package writer

import (
	"context"
	"fmt"
	"time"

	"github.com/jonesrussell/crawlfrontier/internal/domain"
	"github.com/jonesrussell/crawlfrontier/internal/frontierstore"
	"github.com/jonesrussell/crawlfrontier/internal/index"
	"github.com/jonesrussell/crawlfrontier/internal/logger"
	"github.com/jonesrussell/crawlfrontier/internal/metrics"
	"github.com/jonesrussell/crawlfrontier/internal/urlnorm"
)

// Submission is one URL discovered at a given source depth, the unit
// accepted by AddURLs (spec.md section 4.5: "add_urls(list of (url,
// source_depth))").
type Submission struct {
	URL         string
	SourceDepth int
}

// Writer implements AddURLs.
type Writer struct {
	idx     *index.Index
	store   *frontierstore.Store
	log     logger.Interface
	metrics *metrics.Metrics

	// seededURLsOnly mirrors the --seeded-urls-only flag (spec.md section
	// 6): once set, every submission past the initial seed ingestion is
	// dropped before normalization even runs.
	seededURLsOnly bool
}

// Config configures a Writer.
type Config struct {
	// SeededURLsOnly, once enabled, makes every future AddURLs call a
	// no-op (spec.md section 9 Open Questions: "the Frontier Writer
	// drops all non-seed submissions").
	SeededURLsOnly bool
}

// New builds a Writer over the given collaborators. metrics may be nil.
func New(idx *index.Index, store *frontierstore.Store, cfg Config, log logger.Interface, m *metrics.Metrics) *Writer {
	if log == nil {
		log = logger.NewNop()
	}
	return &Writer{idx: idx, store: store, log: log, metrics: m, seededURLsOnly: cfg.SeededURLsOnly}
}

// Lock permanently switches the Writer into seeded-urls-only mode: all
// subsequent AddURLs calls return (0, nil) without touching the index or
// the frontier files. Called once initial seed ingestion completes when
// --seeded-urls-only is set.
func (w *Writer) Lock() {
	w.seededURLsOnly = true
}

// AddURLs implements spec.md section 4.5's algorithm: normalize, drop
// non-http(s)/empty-domain URLs, dedup against seen, group by domain,
// append under each domain's write mutex, and update index counters and
// ready-queue membership. It returns the count of newly-seen, newly-
// enqueued URLs (spec.md: "the count of survivors").
func (w *Writer) AddURLs(ctx context.Context, subs []Submission) (added int, err error) {
	if w.seededURLsOnly {
		return 0, nil
	}

	byDomain := make(map[string][]domain.FrontierRecord)
	now := time.Now()

	for _, sub := range subs {
		normalized, normErr := urlnorm.Normalize(sub.URL)
		if normErr != nil {
			w.log.Debug("dropping unnormalizable url", "url", sub.URL, "error", normErr)
			continue
		}

		d, domErr := urlnorm.RegistrableDomain(normalized)
		if domErr != nil {
			w.log.Debug("dropping url with no registrable domain", "url", normalized, "error", domErr)
			continue
		}

		wasNew, seenErr := w.idx.SeenAdd(ctx, normalized)
		if seenErr != nil {
			return added, fmt.Errorf("writer: seen_add: %w", seenErr)
		}
		if !wasNew {
			if w.metrics != nil {
				w.metrics.FrontierURLsDuplicateTotal.Inc()
			}
			continue
		}

		byDomain[d] = append(byDomain[d], domain.FrontierRecord{
			URL:            normalized,
			Depth:          sub.SourceDepth + 1,
			Priority:       domain.DefaultPriority,
			AddedTimestamp: now,
		})
	}

	for d, records := range byDomain {
		n, appendErr := w.appendDomain(ctx, d, records)
		if appendErr != nil {
			return added, appendErr
		}
		added += n
	}

	return added, nil
}

// appendDomain appends records to one domain's frontier file under its
// write mutex (enforced by frontierstore.Store.Append) and then updates
// the Shared Index: frontier_size, file_path, and ready-queue membership
// (spec.md section 4.5 step 5).
func (w *Writer) appendDomain(ctx context.Context, d string, records []domain.FrontierRecord) (int, error) {
	bytesAdded, err := w.store.Append(d, records)
	if err != nil {
		return 0, fmt.Errorf("writer: append %s: %w", d, err)
	}

	path := w.store.Path(d)
	if err := w.idx.IncrFrontierSize(ctx, d, path, bytesAdded); err != nil {
		return 0, fmt.Errorf("writer: update frontier_size for %s: %w", d, err)
	}

	if err := w.idx.EnsureReady(ctx, d, time.Now()); err != nil {
		return 0, fmt.Errorf("writer: enqueue %s: %w", d, err)
	}

	if w.metrics != nil {
		w.metrics.FrontierURLsAddedTotal.Add(float64(len(records)))
	}

	return len(records), nil
}
