package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

// VisitedRecord mirrors domain.VisitedRecord for the subset of fields
// stored in the index (spec.md section 6: "visited:{hash16(url)} -> map
// with fields url, status_code, fetched_at, content_path, error").
type VisitedRecord struct {
	URL         string
	StatusCode  int
	FetchedAt   time.Time
	ContentPath string
	Error       string
}

// hash16 truncates a SHA-256 hex digest to 16 hex characters, matching
// spec.md section 6's visited-record key naming.
func hash16(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])[:16]
}

// MarkVisited writes a visited record and inserts the URL into seen
// (spec.md section 4.1: "mark_visited(url, status, content_ref, when):
// writes a visited record and also inserts into seen"). Per the Open
// Questions resolution recorded in DESIGN.md, this double-insertion into
// seen is intentional and harmless because seen is idempotent.
func (idx *Index) MarkVisited(ctx context.Context, rec VisitedRecord) error {
	h := hash16(rec.URL)
	key := idx.visitedKey(h)

	values := map[string]any{
		"url":          rec.URL,
		"status_code":  rec.StatusCode,
		"fetched_at":   rec.FetchedAt.Unix(),
		"content_path": rec.ContentPath,
		"error":        rec.Error,
	}

	if err := idx.withRetry(ctx, func() error {
		return idx.rdb.HSet(ctx, key, values).Err()
	}); err != nil {
		return err
	}

	if err := idx.withRetry(ctx, func() error {
		return idx.rdb.ZAdd(ctx, idx.visitedByTimeKey(), redis.Z{
			Score:  float64(rec.FetchedAt.Unix()),
			Member: h,
		}).Err()
	}); err != nil {
		return err
	}

	_, err := idx.SeenAdd(ctx, rec.URL)
	return err
}

// GetVisited reads back a visited record by URL, for tests and resume
// diagnostics.
func (idx *Index) GetVisited(ctx context.Context, url string) (rec VisitedRecord, ok bool, err error) {
	var fields map[string]string
	runErr := idx.withRetry(ctx, func() error {
		f, e := idx.rdb.HGetAll(ctx, idx.visitedKey(hash16(url))).Result()
		if e != nil {
			return e
		}
		fields = f
		return nil
	})
	if runErr != nil {
		return VisitedRecord{}, false, runErr
	}
	if len(fields) == 0 {
		return VisitedRecord{}, false, nil
	}

	rec = VisitedRecord{
		URL:         fields["url"],
		StatusCode:  int(parseInt64(fields["status_code"])),
		FetchedAt:   parseUnixTime(fields["fetched_at"]),
		ContentPath: fields["content_path"],
		Error:       fields["error"],
	}
	return rec, true, nil
}
