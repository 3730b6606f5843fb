package scrape

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reverscodes/codes-cli/internal/resilience"
)

func newTestFetcher(breakers *resilience.HostBreakers) *HTTPFetcher {
	return NewHTTPFetcher(Options{
		UserAgent: "test-agent",
		Timeout:   5 * time.Second,
		Retry:     resilience.Policy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
		Rate:      1000,
		Burst:     10,
		Breakers:  breakers,
	})
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("<h2>Active Codes</h2><ul><li>UPDATE20</li></ul>"))
	}))
	defer srv.Close()

	body, err := newTestFetcher(nil).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, body, "UPDATE20")
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	body, err := newTestFetcher(nil).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", body)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetch_NotFoundIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestFetcher(nil).Fetch(context.Background(), srv.URL)
	require.Error(t, err)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusNotFound, fe.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetch_Blocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Cf-Ray", "123")
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newTestFetcher(nil).Fetch(context.Background(), srv.URL)
	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, BlockCloudflare, fe.Block)
	assert.Contains(t, fe.Error(), "blocked")
}

func TestFetch_PageWithCommentCaptcha(t *testing.T) {
	page := "<h2>Active Codes</h2><ul><li>UPDATE20 - 2x EXP</li></ul>" +
		strings.Repeat("<p>Check back daily for new codes.</p>", 80) +
		`<form id="commentform"><div class="g-recaptcha" data-sitekey="x"></div></form>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	body, err := newTestFetcher(nil).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, body, "UPDATE20")
}

func TestFetch_DecodesCharset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=windows-1252")
		_, _ = w.Write([]byte("caf\xe9 CODE123"))
	}))
	defer srv.Close()

	body, err := newTestFetcher(nil).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "café CODE123", body)
}

func TestFetch_BreakerStopsRequests(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := newTestFetcher(resilience.NewHostBreakers(2, time.Minute))
	for range 2 {
		_, err := f.Fetch(context.Background(), srv.URL)
		require.Error(t, err)
	}
	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, resilience.ErrOpen))
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetch_BodyCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("a", 5000)))
	}))
	defer srv.Close()

	f := newTestFetcher(nil)
	f.opts.MaxBody = 100
	body, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, body, 100)
}

func TestCharsetOf(t *testing.T) {
	assert.Equal(t, "iso-8859-1", charsetOf("text/html; charset=ISO-8859-1", nil))
	assert.Equal(t, "shift_jis", charsetOf("text/html", []byte(`<meta charset="Shift_JIS">`)))
	assert.Equal(t, "", charsetOf("", []byte("<html>")))
}

func TestAdaptiveLimiter(t *testing.T) {
	l := newAdaptiveLimiter(10, 1)
	l.onTooManyRequests("example.com")
	assert.InDelta(t, 5, float64(l.limit()), 1e-9)
	for range 3 {
		l.onTooManyRequests("example.com")
	}
	assert.InDelta(t, 2.5, float64(l.limit()), 1e-9, "floors at a quarter of the initial rate")
	for range 20 {
		l.onSuccess()
	}
	assert.InDelta(t, 20, float64(l.limit()), 1e-9, "caps at twice the initial rate")
}
