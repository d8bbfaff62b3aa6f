package worker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/crawlfrontier/internal/content"
	"github.com/jonesrussell/crawlfrontier/internal/frontierstore"
	"github.com/jonesrussell/crawlfrontier/internal/htmlfetch"
	"github.com/jonesrussell/crawlfrontier/internal/htmlparse"
	"github.com/jonesrussell/crawlfrontier/internal/index"
	"github.com/jonesrussell/crawlfrontier/internal/politeness"
	"github.com/jonesrussell/crawlfrontier/internal/scheduler"
	"github.com/jonesrussell/crawlfrontier/internal/urlnorm"
	"github.com/jonesrussell/crawlfrontier/internal/writer"
)

func TestPoolFetchesSeedAndDiscoversLinks(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	idx := index.NewFromClient(rdb, index.Config{KeyPrefix: "test"})

	store, err := frontierstore.New(t.TempDir())
	require.NoError(t, err)

	var page string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	page = `<html><body><article><p>hi</p><a href="` + srv.URL + `/next">next</a></article></body></html>`

	oracle := politeness.New(idx, politeness.Config{
		UserAgent:     "testbot",
		MinCrawlDelay: 10 * time.Millisecond,
		HTTPClient:    srv.Client(),
	}, nil)

	sched := scheduler.New(idx, store, oracle, nil, nil)
	w := writer.New(idx, store, writer.Config{}, nil, nil)

	contentWriter, err := content.New(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err = w.AddURLs(ctx, []writer.Submission{{URL: srv.URL + "/", SourceDepth: -1}})
	require.NoError(t, err)

	pool := New(Config{WorkerCount: 1, ClaimRetryDelay: 10 * time.Millisecond}, Deps{
		Scheduler: sched,
		Writer:    w,
		Fetcher:   htmlfetch.New(htmlfetch.Config{UserAgent: "testbot", HTTPClient: srv.Client()}),
		Parser:    htmlparse.New(),
		Content:   contentWriter,
		Index:     idx,
	})

	runCtx, runCancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer runCancel()
	require.NoError(t, pool.Run(runCtx))

	seedNormalized, err := urlnorm.Normalize(srv.URL + "/")
	require.NoError(t, err)

	visited, ok, err := idx.GetVisited(context.Background(), seedNormalized)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, http.StatusOK, visited.StatusCode)

	nextNormalized, err := urlnorm.Normalize(srv.URL + "/next")
	require.NoError(t, err)
	seenNext, err := idx.SeenContains(context.Background(), nextNormalized)
	require.NoError(t, err)
	require.True(t, seenNext)
}
