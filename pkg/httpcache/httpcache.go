// Package httpcache fetches pages for the intelligence collaborators. Responses, HTTP
// failures, and network failures are all cached, and concurrent requests for one URL
// share a single fetch.
package httpcache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/codeGROOVE-dev/sfcache"
	"github.com/codeGROOVE-dev/sfcache/pkg/persist/localfs"
)

// UserAgent is the browser User-Agent string sent by every collaborator.
const UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:146.0) Gecko/20100101 Firefox/146.0"

const (
	maxBodySize = 4 << 20
	// fetchBudget bounds one fetch including its retry.
	fetchBudget = 15 * time.Second
)

// Stats counts cache hits and misses across every Cacher in the process.
type Stats struct {
	Hits   int64
	Misses int64
}

var hits, misses atomic.Int64

// CacheStats returns the current counters.
func CacheStats() Stats {
	return Stats{Hits: hits.Load(), Misses: misses.Load()}
}

// ResetStats zeroes the counters.
func ResetStats() {
	hits.Store(0)
	misses.Store(0)
}

// Cacher is the storage FetchURL reads through. *Cache and *Redis implement it.
type Cacher interface {
	GetSet(ctx context.Context, key string, fetch func(context.Context) ([]byte, error), ttl ...time.Duration) ([]byte, error)
	TTL() time.Duration
}

// Cache is a memory cache backed by files on local disk.
type Cache struct {
	*sfcache.TieredCache[string, []byte]

	ttl time.Duration
}

// New opens a Cache under the user cache directory, in a "dossier" subdirectory.
func New(ttl time.Duration) (*Cache, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return NewWithPath(ttl, filepath.Join(dir, "dossier"))
}

// NewWithPath opens a Cache stored in dir.
func NewWithPath(ttl time.Duration, dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	store, err := localfs.New[string, []byte]("dossier", dir)
	if err != nil {
		return nil, fmt.Errorf("open cache store: %w", err)
	}
	tc, err := sfcache.NewTiered[string, []byte](store, sfcache.TTL(ttl))
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	return &Cache{TieredCache: tc, ttl: ttl}, nil
}

// TTL returns the default entry lifetime.
func (c *Cache) TTL() time.Duration { return c.ttl }

// HTTPError is a non-200 response.
type HTTPError struct {
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d fetching %s", e.StatusCode, e.URL)
}

// StatusCode returns the HTTP status carried by err, 200 for a nil error, and 0 when unknown.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

// ResponseValidator reports whether a 200 body is worth caching.
type ResponseValidator func(body []byte) bool

// challengeMarkers appear on bot-check interstitials served with a 200 status.
var challengeMarkers = [][]byte{
	[]byte("<title>just a moment...</title>"),
	[]byte("cf-chl-"),
	[]byte("challenge-platform"),
	[]byte("g-recaptcha"),
	[]byte("are you a robot"),
	[]byte("unusual traffic from your computer"),
	[]byte("anomaly-modal"),
}

// NotChallenge is a ResponseValidator that refuses bot-check and captcha pages, so a
// transient block is never remembered as the page content.
func NotChallenge(body []byte) bool {
	head := bytes.ToLower(body[:min(len(body), 64<<10)])
	for _, m := range challengeMarkers {
		if bytes.Contains(head, m) {
			return false
		}
	}
	return true
}

// FetchURL returns the body of req, reading through cache when it is non-nil.
func FetchURL(ctx context.Context, cache Cacher, client *http.Client, req *http.Request, logger *slog.Logger) ([]byte, error) {
	return FetchURLWithValidator(ctx, cache, client, req, logger, nil)
}

// FetchURLWithValidator is FetchURL with a validator. A body the validator rejects is
// returned to the caller but not cached.
func FetchURLWithValidator(
	ctx context.Context,
	cache Cacher,
	client *http.Client,
	req *http.Request,
	logger *slog.Logger,
	validator ResponseValidator,
) ([]byte, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cache == nil {
		misses.Add(1)
		return doFetch(ctx, client, req, logger)
	}

	target := req.URL.String()
	fetched := false
	data, err := cache.GetSet(ctx, requestKey(client, req), func(ctx context.Context) ([]byte, error) {
		fetched = true
		misses.Add(1)
		logger.DebugContext(ctx, "cache miss", "url", target)

		body, err := doFetch(ctx, client, req, logger)
		switch {
		case err == nil && validator != nil && !validator(body):
			logger.DebugContext(ctx, "response rejected by validator, not caching", "url", target)
			return nil, &uncacheable{body: body}
		case err == nil:
			return body, nil
		case ctx.Err() != nil:
			// Cancellation belongs to this caller, not to the URL.
			return nil, err
		default:
			return encodeFailure(err), nil
		}
	}, cache.TTL())

	if !fetched {
		hits.Add(1)
		logger.DebugContext(ctx, "cache hit", "url", target)
	}

	var skip *uncacheable
	if errors.As(err, &skip) {
		return skip.body, nil
	}
	if err != nil {
		return nil, err
	}
	if ferr := decodeFailure(data, target); ferr != nil {
		return nil, ferr
	}
	return data, nil
}

// requestKey hashes method and URL. Requests carrying cookies are keyed apart from
// anonymous ones so a logged-in view is never served to an anonymous check.
func requestKey(client *http.Client, req *http.Request) string {
	key := req.Method + " " + req.URL.String()
	if req.Header.Get("Cookie") != "" || (client.Jar != nil && len(client.Jar.Cookies(req.URL)) > 0) {
		key += "|auth"
	}
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Failures are cached as marker values so a dead URL is not refetched every search.
var (
	httpFailure = []byte("ERROR:")
	netFailure  = []byte("NETERR:")
)

func encodeFailure(err error) []byte {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return strconv.AppendInt(bytes.Clone(httpFailure), int64(httpErr.StatusCode), 10)
	}
	return append(bytes.Clone(netFailure), err.Error()...)
}

func decodeFailure(data []byte, target string) error {
	if code, ok := bytes.CutPrefix(data, httpFailure); ok {
		n, _ := strconv.Atoi(string(code)) //nolint:errcheck // 0 means unknown
		return &HTTPError{URL: target, StatusCode: n}
	}
	if msg, ok := bytes.CutPrefix(data, netFailure); ok {
		return fmt.Errorf("cached network error: %s", msg)
	}
	return nil
}

type uncacheable struct{ body []byte }

func (*uncacheable) Error() string { return "response not cacheable" }

func doFetch(ctx context.Context, client *http.Client, req *http.Request, logger *slog.Logger) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchBudget)
	defer cancel()

	return retry.DoWithData(
		func() ([]byte, error) {
			if err := globalRateLimiter.Wait(ctx, req.URL, logger); err != nil {
				return nil, err
			}
			attempt, err := cloneRequest(ctx, req)
			if err != nil {
				return nil, err
			}
			resp, err := client.Do(attempt)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close() //nolint:errcheck // read-only body

			if resp.StatusCode != http.StatusOK {
				return nil, &HTTPError{URL: req.URL.String(), StatusCode: resp.StatusCode}
			}
			return io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		},
		retry.Context(ctx),
		retry.Attempts(2),
		retry.Delay(200*time.Millisecond),
		retry.MaxJitter(100*time.Millisecond),
		retry.RetryIf(isRetryableError),
		retry.OnRetry(func(n uint, err error) {
			logger.DebugContext(ctx, "retrying request", "attempt", n+1, "url", req.URL.String(), "error", err)
		}),
	)
}

// cloneRequest gives each attempt a fresh body so retries can resend POST payloads.
func cloneRequest(ctx context.Context, req *http.Request) (*http.Request, error) {
	r := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("reset request body: %w", err)
		}
		r.Body = body
	}
	return r, nil
}

// isRetryableError reports whether err is worth one more attempt: network errors,
// 429, and 5xx gateway-style failures. Other 4xx answers are final.
func isRetryableError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	switch StatusCode(err) {
	case 0:
		return true
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
