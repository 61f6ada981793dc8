package httpcache

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// mapCache is an in-memory Cacher for tests.
type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *mapCache) GetSet(ctx context.Context, key string, fetch func(context.Context) ([]byte, error), _ ...time.Duration) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	v, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	if m.data == nil {
		m.data = make(map[string][]byte)
	}
	m.data[key] = v
	return v, nil
}

func (*mapCache) TTL() time.Duration { return time.Hour }

func newTestServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}
	SetDomainDelay(u.Host, 0)
	return srv
}

func TestFetchURLCachesBody(t *testing.T) {
	var calls atomic.Int32
	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Write([]byte("hello")) //nolint:errcheck // test server
	})

	cache := &mapCache{}
	for range 3 {
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, http.NoBody)
		if err != nil {
			t.Fatal(err)
		}
		body, err := FetchURL(context.Background(), cache, srv.Client(), req, nil)
		if err != nil {
			t.Fatalf("FetchURL: %v", err)
		}
		if string(body) != "hello" {
			t.Errorf("body = %q, want hello", body)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server called %d times, want 1", got)
	}
}

func TestFetchURLCachesHTTPErrors(t *testing.T) {
	var calls atomic.Int32
	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})

	cache := &mapCache{}
	for range 2 {
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, http.NoBody)
		if err != nil {
			t.Fatal(err)
		}
		_, err = FetchURL(context.Background(), cache, srv.Client(), req, nil)
		if got := StatusCode(err); got != http.StatusNotFound {
			t.Errorf("StatusCode(err) = %d, want 404 (err=%v)", got, err)
		}
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server called %d times, want 1 (404 is not retried and is cached)", got)
	}
}

func TestFetchURLValidatorSkipsCache(t *testing.T) {
	var calls atomic.Int32
	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Write([]byte("partial")) //nolint:errcheck // test server
	})

	cache := &mapCache{}
	reject := func([]byte) bool { return false }
	for range 2 {
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, http.NoBody)
		if err != nil {
			t.Fatal(err)
		}
		body, err := FetchURLWithValidator(context.Background(), cache, srv.Client(), req, nil, reject)
		if err != nil {
			t.Fatalf("FetchURLWithValidator: %v", err)
		}
		if string(body) != "partial" {
			t.Errorf("body = %q, want partial", body)
		}
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("server called %d times, want 2", got)
	}
}

func TestFetchURLRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok")) //nolint:errcheck // test server
	})

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, http.NoBody)
	if err != nil {
		t.Fatal(err)
	}
	body, err := FetchURL(context.Background(), nil, srv.Client(), req, nil)
	if err != nil {
		t.Fatalf("FetchURL: %v", err)
	}
	if string(body) != "ok" {
		t.Errorf("body = %q, want ok", body)
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"429", &HTTPError{StatusCode: http.StatusTooManyRequests}, true},
		{"503", &HTTPError{StatusCode: http.StatusServiceUnavailable}, true},
		{"404", &HTTPError{StatusCode: http.StatusNotFound}, false},
		{"network", errors.New("connection reset"), true},
		{"canceled", context.Canceled, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryableError(tt.err); got != tt.want {
				t.Errorf("isRetryableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestStatusCode(t *testing.T) {
	if got := StatusCode(nil); got != http.StatusOK {
		t.Errorf("StatusCode(nil) = %d", got)
	}
	if got := StatusCode(errors.New("boom")); got != 0 {
		t.Errorf("StatusCode(plain) = %d", got)
	}
}

func TestRateLimiterWaitCanceled(t *testing.T) {
	rl := newDomainRateLimiter(time.Hour)
	u := &url.URL{Host: "slow.example"}
	if err := rl.Wait(context.Background(), u, nil); err != nil {
		t.Fatalf("first Wait: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := rl.Wait(ctx, u, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("second Wait = %v, want context.Canceled", err)
	}
}

func TestNotChallenge(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{name: "profile page", body: "<html><title>jdoe (John Doe)</title></html>", want: true},
		{name: "cloudflare", body: "<html><head><title>Just a moment...</title>", want: false},
		{name: "recaptcha", body: `<div class="g-recaptcha" data-sitekey="x">`, want: false},
		{name: "duckduckgo anomaly", body: `<div class="anomaly-modal__title">`, want: false},
		{name: "empty", body: "", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NotChallenge([]byte(tt.body)); got != tt.want {
				t.Errorf("NotChallenge = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRequestKeySeparatesAuthenticated(t *testing.T) {
	anon, err := http.NewRequestWithContext(context.Background(), http.MethodGet, "https://example.com/u/jdoe", http.NoBody)
	if err != nil {
		t.Fatal(err)
	}
	authed := anon.Clone(context.Background())
	authed.Header.Set("Cookie", "sessionid=abc")

	client := &http.Client{}
	if requestKey(client, anon) == requestKey(client, authed) {
		t.Error("authenticated and anonymous requests share a cache key")
	}
	if requestKey(client, anon) != requestKey(client, anon.Clone(context.Background())) {
		t.Error("identical requests produced different keys")
	}
}

func TestFetchURLCachesNetworkErrors(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	SetDomainDelay(u.Host, 0)
	srv.Close()

	cache := &mapCache{}
	for i := range 2 {
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, http.NoBody)
		if err != nil {
			t.Fatal(err)
		}
		_, err = FetchURL(context.Background(), cache, http.DefaultClient, req, nil)
		if err == nil {
			t.Fatalf("fetch %d: expected an error from a closed server", i)
		}
		if StatusCode(err) != 0 {
			t.Errorf("fetch %d: StatusCode = %d, want 0", i, StatusCode(err))
		}
	}
	if len(cache.data) != 1 {
		t.Errorf("cache has %d entries, want the failure cached once", len(cache.data))
	}
}

func TestCacheStats(t *testing.T) {
	ResetStats()
	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("x")) //nolint:errcheck // test server
	})
	cache := &mapCache{}
	for range 3 {
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, http.NoBody)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := FetchURL(context.Background(), cache, srv.Client(), req, nil); err != nil {
			t.Fatal(err)
		}
	}
	if got := CacheStats(); got.Misses < 1 || got.Hits < 2 {
		t.Errorf("CacheStats = %+v, want >=1 miss and >=2 hits", got)
	}
}
