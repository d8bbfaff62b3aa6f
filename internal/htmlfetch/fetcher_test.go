package htmlfetch

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFetchReturnsBodyAndStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Contains(t, r.Header.Get("User-Agent"), "a@example.com")
		_, _ = w.Write([]byte("hello"))
	}))
	defer srv.Close()

	f := New(Config{UserAgent: UserAgent("a@example.com"), HTTPClient: srv.Client()})
	result, err := f.Fetch(t.Context(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, result.StatusCode)
	require.Equal(t, "hello", string(result.Body))
}

func TestFetchFollowsRedirectAndReportsFinalURL(t *testing.T) {
	var finalPath = "/final"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/start" {
			http.Redirect(w, r, finalPath, http.StatusFound)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := New(Config{UserAgent: "testbot", HTTPClient: srv.Client()})
	result, err := f.Fetch(t.Context(), srv.URL+"/start")
	require.NoError(t, err)
	require.Contains(t, result.FinalURL, finalPath)
}
