package index

import (
	"context"
	"strconv"
	"time"

	"github.com/jonesrussell/crawlfrontier/internal/domain"
)

// GetDomainMeta reads domain metadata (spec.md section 4.1:
// "get_domain_meta(domain)"). A domain with no stored hash yields a
// zero-value DomainMeta and ok=false, distinguishing "never seen" from
// "seen but empty".
func (idx *Index) GetDomainMeta(ctx context.Context, d string) (meta domain.DomainMeta, ok bool, err error) {
	var fields map[string]string
	runErr := idx.withRetry(ctx, func() error {
		f, e := idx.rdb.HGetAll(ctx, idx.domainKey(d)).Result()
		if e != nil {
			return e
		}
		fields = f
		return nil
	})
	if runErr != nil {
		return domain.DomainMeta{}, false, runErr
	}
	if len(fields) == 0 {
		return domain.DomainMeta{}, false, nil
	}

	meta = domain.DomainMeta{
		Domain:         d,
		FrontierPath:   fields["frontier_path"],
		FrontierOffset: parseInt64(fields["frontier_offset"]),
		FrontierSize:   parseInt64(fields["frontier_size"]),
		NextFetchTime:  parseUnixTime(fields["next_fetch_time"]),
		RobotsCached:   fields["robots_cached"] == "1",
		RobotsExpires:  parseUnixTime(fields["robots_expires"]),
		RobotsBody:     fields["robots_body"],
		CrawlDelay:     time.Duration(parseInt64(fields["crawl_delay_seconds"])) * time.Second,
		IsExcluded:     fields["is_excluded"] == "1",
		ClaimToken:     fields["claim_token"],
	}
	return meta, true, nil
}

// SetDomainMeta merges the given fields into the domain's metadata hash
// (spec.md section 4.1: "set_domain_meta(domain, fields): read/merge
// metadata"). Only non-nil fields are written, so callers can update a
// subset (e.g. just next_fetch_time) without re-sending the whole record.
type DomainMetaFields struct {
	FrontierPath   *string
	FrontierOffset *int64
	FrontierSize   *int64
	NextFetchTime  *time.Time
	RobotsCached   *bool
	RobotsExpires  *time.Time
	RobotsBody     *string
	CrawlDelay     *time.Duration
	IsExcluded     *bool
	ClaimToken     *string
}

func (idx *Index) SetDomainMeta(ctx context.Context, d string, f DomainMetaFields) error {
	values := map[string]any{}
	if f.FrontierPath != nil {
		values["frontier_path"] = *f.FrontierPath
	}
	if f.FrontierOffset != nil {
		values["frontier_offset"] = *f.FrontierOffset
	}
	if f.FrontierSize != nil {
		values["frontier_size"] = *f.FrontierSize
	}
	if f.NextFetchTime != nil {
		values["next_fetch_time"] = f.NextFetchTime.Unix()
	}
	if f.RobotsCached != nil {
		values["robots_cached"] = boolToStr(*f.RobotsCached)
	}
	if f.RobotsExpires != nil {
		values["robots_expires"] = f.RobotsExpires.Unix()
	}
	if f.RobotsBody != nil {
		values["robots_body"] = *f.RobotsBody
	}
	if f.CrawlDelay != nil {
		values["crawl_delay_seconds"] = int64(f.CrawlDelay.Seconds())
	}
	if f.IsExcluded != nil {
		values["is_excluded"] = boolToStr(*f.IsExcluded)
	}
	if f.ClaimToken != nil {
		values["claim_token"] = *f.ClaimToken
	}

	if len(values) == 0 {
		return nil
	}

	return idx.withRetry(ctx, func() error {
		return idx.rdb.HSet(ctx, idx.domainKey(d), values).Err()
	})
}

// IncrFrontierSize atomically increases frontier_size by delta bytes and
// sets frontier_path if it is not already set, matching spec.md section
// 4.5 step 5c ("increase frontier_size by bytes written; set file_path if
// first write").
func (idx *Index) IncrFrontierSize(ctx context.Context, d string, path string, delta int64) error {
	key := idx.domainKey(d)
	return idx.withRetry(ctx, func() error {
		if err := idx.rdb.HIncrBy(ctx, key, "frontier_size", delta).Err(); err != nil {
			return err
		}
		return idx.rdb.HSetNX(ctx, key, "frontier_path", path).Err()
	})
}

func boolToStr(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func parseInt64(s string) int64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseUnixTime(s string) time.Time {
	sec := parseInt64(s)
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
