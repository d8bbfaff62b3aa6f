package scheduler

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/crawlfrontier/internal/domain"
	"github.com/jonesrussell/crawlfrontier/internal/frontierstore"
	"github.com/jonesrussell/crawlfrontier/internal/index"
	"github.com/jonesrussell/crawlfrontier/internal/politeness"
)

func newTestScheduler(t *testing.T, robotsBody string) *Scheduler {
	t.Helper()
	return newTestSchedulerWithDelay(t, robotsBody, 70*time.Millisecond)
}

func newTestSchedulerWithDelay(t *testing.T, robotsBody string, crawlDelay time.Duration) *Scheduler {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	idx := index.NewFromClient(rdb, index.Config{KeyPrefix: "test"})

	store, err := frontierstore.New(t.TempDir())
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(robotsBody))
	}))
	t.Cleanup(srv.Close)

	// The oracle asks http://{domain}/robots.txt; dial srv for every host
	// so a.example, c.example, ... all receive robotsBody.
	client := &http.Client{Transport: &http.Transport{
		DialContext: func(ctx context.Context, network, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, srv.Listener.Addr().String())
		},
	}}

	oracle := politeness.New(idx, politeness.Config{
		UserAgent:     "testbot",
		MinCrawlDelay: crawlDelay,
		HTTPClient:    client,
	}, nil)

	return New(idx, store, oracle, nil, nil)
}

func seedDomain(t *testing.T, s *Scheduler, d string, records []domain.FrontierRecord) {
	t.Helper()
	ctx := context.Background()
	n, err := s.store.Append(d, records)
	require.NoError(t, err)
	require.NoError(t, s.idx.IncrFrontierSize(ctx, d, s.store.Path(d), n))
	require.NoError(t, s.idx.EnsureReady(ctx, d, time.Now()))
}

func TestGetNextURLReturnsInInsertionOrder(t *testing.T) {
	s := newTestScheduler(t, "")
	seedDomain(t, s, "a.example", []domain.FrontierRecord{
		{URL: "http://a.example/1", Depth: 0, Priority: 1.0, AddedTimestamp: time.Now()},
		{URL: "http://a.example/2", Depth: 0, Priority: 1.0, AddedTimestamp: time.Now()},
	})

	task, err := s.GetNextURL(context.Background(), "w1")
	require.NoError(t, err)
	require.Equal(t, "http://a.example/1", task.URL)
}

func TestGetNextURLEnforcesPolitenessSpacing(t *testing.T) {
	// Longer than GetNextURL's own back-off (two 100ms sleeps), so the
	// whole second call falls inside the delay.
	const crawlDelay = 300 * time.Millisecond
	s := newTestSchedulerWithDelay(t, "", crawlDelay)
	seedDomain(t, s, "a.example", []domain.FrontierRecord{
		{URL: "http://a.example/1", Depth: 0, Priority: 1.0, AddedTimestamp: time.Now()},
		{URL: "http://a.example/2", Depth: 0, Priority: 1.0, AddedTimestamp: time.Now()},
	})

	ctx := context.Background()
	t1 := time.Now()
	task, err := s.GetNextURL(ctx, "w1")
	require.NoError(t, err)
	require.Equal(t, "http://a.example/1", task.URL)

	// Second URL is not yet eligible: crawl delay has not elapsed.
	_, err = s.GetNextURL(ctx, "w1")
	require.ErrorIs(t, err, ErrIdle)

	time.Sleep(crawlDelay)
	t2 := time.Now()
	task, err = s.GetNextURL(ctx, "w1")
	require.NoError(t, err)
	require.Equal(t, "http://a.example/2", task.URL)
	require.GreaterOrEqual(t, t2.Sub(t1), crawlDelay)
}

func TestGetNextURLSkipsDisallowedWithoutDelay(t *testing.T) {
	body := "User-agent: *\nDisallow: /private/\n"
	s := newTestScheduler(t, body)
	seedDomain(t, s, "c.example", []domain.FrontierRecord{
		{URL: "http://c.example/ok", Depth: 0, Priority: 1.0, AddedTimestamp: time.Now()},
		{URL: "http://c.example/private/x", Depth: 0, Priority: 1.0, AddedTimestamp: time.Now()},
		{URL: "http://c.example/ok2", Depth: 0, Priority: 1.0, AddedTimestamp: time.Now()},
	})

	ctx := context.Background()
	task, err := s.GetNextURL(ctx, "w1")
	require.NoError(t, err)
	require.Equal(t, "http://c.example/ok", task.URL)

	// .../private/x is skipped without consuming the delay, so once the
	// delay from /ok has passed the same call goes straight on to ok2
	// rather than reporting idle.
	task, err = s.GetNextURL(ctx, "w1")
	require.NoError(t, err)
	require.Equal(t, "http://c.example/ok2", task.URL)
}

func TestGetNextURLReturnsIdleWhenExhausted(t *testing.T) {
	s := newTestScheduler(t, "")
	seedDomain(t, s, "a.example", []domain.FrontierRecord{
		{URL: "http://a.example/1", Depth: 0, Priority: 1.0, AddedTimestamp: time.Now()},
	})

	ctx := context.Background()
	_, err := s.GetNextURL(ctx, "w1")
	require.NoError(t, err)

	_, err = s.GetNextURL(ctx, "w1")
	require.ErrorIs(t, err, ErrIdle)
}

func TestGetNextURLRoundRobinsAcrossDomains(t *testing.T) {
	s := newTestScheduler(t, "")
	seedDomain(t, s, "a.example", []domain.FrontierRecord{
		{URL: "http://a.example/1", Depth: 0, Priority: 1.0, AddedTimestamp: time.Now()},
	})
	seedDomain(t, s, "b.example", []domain.FrontierRecord{
		{URL: "http://b.example/1", Depth: 0, Priority: 1.0, AddedTimestamp: time.Now()},
	})

	ctx := context.Background()
	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		task, err := s.GetNextURL(ctx, "w1")
		require.NoError(t, err)
		seen[task.Domain] = true
	}
	require.Len(t, seen, 2)
}
