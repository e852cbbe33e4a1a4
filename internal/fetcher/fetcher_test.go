package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ttstats/rrimport/internal/rr"
)

func TestFetchRelativeLocator(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/results/rr_results_2023jan13" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("<html>results</html>"))
	}))
	t.Cleanup(srv.Close)

	f := New(Config{BaseURL: srv.URL + "/results/", Timeout: 2 * time.Second}, nil)

	data, err := f.Fetch(context.Background(), "rr_results_2023jan13", rr.KindHTML)
	require.NoError(t, err)
	assert.Equal(t, "<html>results</html>", string(data))
}

func TestFetchEncodesSpacesInLocator(t *testing.T) {
	t.Parallel()

	var gotPath atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath.Store(r.URL.Path)
		_, _ = w.Write([]byte("%PDF-1.4"))
	}))
	t.Cleanup(srv.Close)

	f := New(Config{BaseURL: srv.URL + "/results/", Timeout: 2 * time.Second}, nil)

	_, err := f.Fetch(context.Background(), "RR_Results 2023Jan13.pdf", rr.KindPDF)
	require.NoError(t, err)
	assert.Equal(t, "/results/RR_Results 2023Jan13.pdf", gotPath.Load())
}

func TestFetchRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(srv.Close)

	f := New(Config{BaseURL: srv.URL, MaxRetries: 2, Timeout: 2 * time.Second}, nil)

	data, err := f.Fetch(context.Background(), srv.URL+"/doc", rr.KindHTML)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(data))
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchWrapsFailures(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)

	f := New(Config{BaseURL: srv.URL, Timeout: 2 * time.Second}, nil)

	_, err := f.Fetch(context.Background(), srv.URL+"/missing", rr.KindHTML)
	require.Error(t, err)

	var fetchErr *rr.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, srv.URL+"/missing", fetchErr.Locator)
}

func TestFetchReadsLocalFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "rr_results_2023jan13.html")
	require.NoError(t, os.WriteFile(path, []byte("<html>local</html>"), 0o600))

	f := New(Config{}, nil)

	data, err := f.Fetch(context.Background(), path, rr.KindHTML)
	require.NoError(t, err)
	assert.Equal(t, "<html>local</html>", string(data))
}

func TestFetchRelativeWithoutBaseURL(t *testing.T) {
	t.Parallel()

	f := New(Config{}, nil)
	_, err := f.Fetch(context.Background(), "rr_results_2023jan13", rr.KindHTML)
	assert.Error(t, err)
}

func TestRetryPolicyStopsOnCancellation(t *testing.T) {
	t.Parallel()

	p := newRetryPolicy(3)
	assert.False(t, p.shouldRetry(context.Canceled, 0))
	assert.False(t, p.shouldRetry(nil, 0))
	assert.True(t, p.shouldRetry(assert.AnError, 0))
	assert.False(t, p.shouldRetry(assert.AnError, 3))
}

func TestRetryPolicyBackoffBounded(t *testing.T) {
	t.Parallel()

	p := newRetryPolicy(5)
	for attempt := 0; attempt < 10; attempt++ {
		d := p.backoff(attempt)
		assert.GreaterOrEqual(t, d, 125*time.Millisecond)
		assert.LessOrEqual(t, d, 5*time.Second)
	}
}
