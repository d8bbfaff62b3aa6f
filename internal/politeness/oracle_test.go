package politeness

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/crawlfrontier/internal/index"
)

func newTestOracle(t *testing.T, robotsBody string, status int) (*Oracle, *httptest.Server) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	idx := index.NewFromClient(rdb, index.Config{KeyPrefix: "test"})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(robotsBody))
	}))

	oracle := New(idx, Config{
		UserAgent:     "testbot/1.0 (+mailto:test@example.com)",
		MinCrawlDelay: 70 * time.Second,
		HTTPClient:    srv.Client(),
	}, nil)

	return oracle, srv
}

func TestIsAllowedAllowsWhenNoRobots(t *testing.T) {
	oracle, srv := newTestOracle(t, "", http.StatusNotFound)
	defer srv.Close()

	allowed, reason, err := oracle.IsAllowed(context.Background(), "http://example.com/anything")
	require.NoError(t, err)
	require.True(t, allowed)
	require.Equal(t, SkipReasonNone, reason)
}

func TestIsAllowedRespectsDisallow(t *testing.T) {
	body := "User-agent: *\nDisallow: /private/\n"
	oracle, srv := newTestOracle(t, body, http.StatusOK)
	defer srv.Close()

	// Exercise fetchAndCache directly against the test server's domain so
	// robots.txt is actually fetched from httptest rather than example.com.
	host := srv.Listener.Addr().String()
	rules, err := oracle.fetchAndCache(context.Background(), host, "http")
	require.NoError(t, err)
	require.NotNil(t, rules)
	require.False(t, rules.TestAgent("/private/x", oracle.userAgent))
	require.True(t, rules.TestAgent("/ok", oracle.userAgent))
}

func TestIsAllowedFalseWhenExcluded(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	idx := index.NewFromClient(rdb, index.Config{KeyPrefix: "test"})

	oracle := New(idx, Config{UserAgent: "testbot"}, nil)

	require.NoError(t, ApplyExclusions(context.Background(), idx, []string{"blocked.example"}))

	allowed, reason, err := oracle.IsAllowed(context.Background(), "http://blocked.example/x")
	require.NoError(t, err)
	require.False(t, allowed)
	require.Equal(t, SkipReasonExcluded, reason)
}

func TestLoadExclusionsSkipsCommentsAndBlankLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "exclusions.txt")
	content := "# comment\n\nblocked.example\n  \nother.example\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	domains, err := LoadExclusions(path)
	require.NoError(t, err)
	require.Equal(t, []string{"blocked.example", "other.example"}, domains)
}
