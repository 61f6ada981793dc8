// Package websearch queries public web search engines and merges their results.
package websearch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/codeGROOVE-dev/dossier/pkg/httpcache"
)

// ErrNoEngines is returned when a Meta has no engines to query.
var ErrNoEngines = errors.New("no search engines configured")

// DefaultResults is the number of results requested when a caller passes n <= 0.
const DefaultResults = 10

// Result is one web search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Rank    int    `json:"rank"`
	Engine  string `json:"engine"`
}

// Engine is a single search backend.
type Engine interface {
	Name() string
	Search(ctx context.Context, query string, n int) ([]Result, error)
}

// Option configures the built-in engines and Meta.
type Option func(*config)

type config struct {
	cache      httpcache.Cacher
	logger     *slog.Logger
	httpClient *http.Client
	baseURL    string
}

// WithHTTPCache sets the HTTP cache.
func WithHTTPCache(c httpcache.Cacher) Option {
	return func(cfg *config) { cfg.cache = c }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) { cfg.logger = logger }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cfg *config) { cfg.httpClient = c }
}

// WithBaseURL points an engine at another host. Given to NewMeta, it applies to every default engine.
func WithBaseURL(u string) Option {
	return func(cfg *config) { cfg.baseURL = strings.TrimRight(u, "/") }
}

func newConfig(baseURL string, opts []Option) *config {
	cfg := &config{
		logger:     slog.Default(),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    baseURL,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// fetchDocument GETs endpoint through the cache and parses it as HTML.
func (cfg *config) fetchDocument(ctx context.Context, endpoint string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", httpcache.UserAgent)
	req.Header.Set("Accept", "text/html")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	body, err := httpcache.FetchURLWithValidator(ctx, cfg.cache, cfg.httpClient, req, cfg.logger, httpcache.NotChallenge)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

// Meta fans a query out to several engines and merges what they return.
type Meta struct {
	engines []Engine
	logger  *slog.Logger
}

// NewMeta creates a meta-search over engines. With no engines it uses DuckDuckGo and Bing.
func NewMeta(engines []Engine, opts ...Option) *Meta {
	cfg := newConfig("", opts)
	if engines == nil {
		engines = []Engine{NewDuckDuckGo(opts...), NewBing(opts...)}
	}
	return &Meta{engines: engines, logger: cfg.logger}
}

// Engines returns the engine names in merge order.
func (m *Meta) Engines() []string {
	names := make([]string, len(m.engines))
	for i, e := range m.engines {
		names[i] = e.Name()
	}
	return names
}

// Search queries every engine concurrently. Failed engines are logged and skipped.
// Results are merged in engine order, deduplicated by URL, re-ranked from 1, and cut to n.
func (m *Meta) Search(ctx context.Context, query string, n int) ([]Result, error) {
	if len(m.engines) == 0 {
		return nil, ErrNoEngines
	}
	if n <= 0 {
		n = DefaultResults
	}

	perEngine := make([][]Result, len(m.engines))
	g, gctx := errgroup.WithContext(ctx)
	for i, e := range m.engines {
		g.Go(func() error {
			results, err := e.Search(gctx, query, n)
			if err != nil {
				m.logger.DebugContext(gctx, "search engine failed", "engine", e.Name(), "query", query, "error", err)
				return nil // errors handled via logging
			}
			perEngine[i] = results
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // goroutines never return errors

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return merge(perEngine, n), nil
}

func merge(perEngine [][]Result, n int) []Result {
	seen := make(map[string]bool)
	out := make([]Result, 0, n)
	for _, results := range perEngine {
		for _, r := range results {
			key := strings.TrimRight(r.URL, "/")
			if r.URL == "" || seen[key] {
				continue
			}
			seen[key] = true
			r.Rank = len(out) + 1
			out = append(out, r)
			if len(out) == n {
				return out
			}
		}
	}
	return out
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
