// Package dossier assembles a ready-to-use smart search service.
//
// Basic usage:
//
//	svc, err := dossier.New(ctx, dossier.WithBrowserCookies())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer svc.Close()
//	res := svc.Search(ctx, smart.Input{Text: "jdoe, jdoe@example.com"})
//
// Each option maps onto one collaborator: the HTTP cache, the cookie sources used
// for auth-walled platforms, the email, phone, and web sources, and the store.
package dossier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/codeGROOVE-dev/dossier/pkg/auth"
	"github.com/codeGROOVE-dev/dossier/pkg/emailintel"
	"github.com/codeGROOVE-dev/dossier/pkg/httpcache"
	"github.com/codeGROOVE-dev/dossier/pkg/personintel"
	"github.com/codeGROOVE-dev/dossier/pkg/phoneintel"
	"github.com/codeGROOVE-dev/dossier/pkg/profile"
	"github.com/codeGROOVE-dev/dossier/pkg/smart"
	"github.com/codeGROOVE-dev/dossier/pkg/store"
	"github.com/codeGROOVE-dev/dossier/pkg/usersearch"
	"github.com/codeGROOVE-dev/dossier/pkg/websearch"
)

// DefaultCacheTTL is how long fetched pages are reused when no TTL is given.
const DefaultCacheTTL = 75 * 24 * time.Hour

// Option configures New.
type Option func(*config)

//nolint:govet // fieldalignment: intentional layout for readability
type config struct {
	logger   *slog.Logger
	observer smart.Observer

	noCache   bool
	cacheTTL  time.Duration
	cacheDir  string
	redisAddr string

	browserCookies bool
	cookies        map[string]map[string]string
	platforms      []string
	httpTimeout    time.Duration

	hibpKey       string
	githubToken   string
	numLookupKey  string
	defaultRegion string
	engines       []string

	store store.Store

	concurrency   int
	webResults    int
	excludeNSFW   bool
	emailProfiles bool
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithObserver receives lookup and search timings.
func WithObserver(o smart.Observer) Option {
	return func(c *config) { c.observer = o }
}

// WithoutCache disables the HTTP response cache.
func WithoutCache() Option {
	return func(c *config) { c.noCache = true }
}

// WithCache sets the disk cache TTL and directory. An empty dir uses the user cache directory.
func WithCache(ttl time.Duration, dir string) Option {
	return func(c *config) { c.cacheTTL, c.cacheDir = ttl, dir }
}

// WithRedisCache shares the HTTP cache through the Redis server at addr.
func WithRedisCache(addr string) Option {
	return func(c *config) { c.redisAddr = addr }
}

// WithBrowserCookies reads session cookies for auth-walled platforms from local browsers.
func WithBrowserCookies() Option {
	return func(c *config) { c.browserCookies = true }
}

// WithCookies sets explicit cookies per platform. They take precedence over
// environment and browser cookies.
func WithCookies(cookies map[string]map[string]string) Option {
	return func(c *config) { c.cookies = cookies }
}

// WithPlatforms restricts username searches to the named platforms.
func WithPlatforms(names ...string) Option {
	return func(c *config) { c.platforms = names }
}

// WithHTTPTimeout bounds each outbound request.
func WithHTTPTimeout(d time.Duration) Option {
	return func(c *config) { c.httpTimeout = d }
}

// WithHIBPKey enables breach lookups.
func WithHIBPKey(key string) Option {
	return func(c *config) { c.hibpKey = key }
}

// WithGitHubToken authenticates GitHub commit-email searches.
func WithGitHubToken(token string) Option {
	return func(c *config) { c.githubToken = token }
}

// WithNumLookupKey enables reverse phone name lookups.
func WithNumLookupKey(key string) Option {
	return func(c *config) { c.numLookupKey = key }
}

// WithDefaultRegion sets the phone region assumed when a search does not name one.
func WithDefaultRegion(region string) Option {
	return func(c *config) { c.defaultRegion = region }
}

// WithEngines selects web search engines by name: "duckduckgo", "bing".
func WithEngines(names ...string) Option {
	return func(c *config) { c.engines = names }
}

// WithStore enables persistence. The service takes ownership and closes st on Close.
func WithStore(st store.Store) Option {
	return func(c *config) { c.store = st }
}

// WithConcurrency bounds concurrent lookups per search.
func WithConcurrency(n int) Option {
	return func(c *config) { c.concurrency = n }
}

// WithWebResults sets how many web results are kept per identifier.
func WithWebResults(n int) Option {
	return func(c *config) { c.webResults = n }
}

// WithExcludeNSFW skips adult platforms during username searches.
func WithExcludeNSFW(exclude bool) Option {
	return func(c *config) { c.excludeNSFW = exclude }
}

// WithEmailProfiles controls whether email lookups search for linked profiles.
func WithEmailProfiles(search bool) Option {
	return func(c *config) { c.emailProfiles = search }
}

// New builds a smart search service with every collaborator wired. The caller must
// Close the service to release the cache and store. On error the store is left open.
func New(ctx context.Context, opts ...Option) (*smart.Service, error) {
	cfg := &config{
		logger:        slog.Default(),
		cacheTTL:      DefaultCacheTTL,
		httpTimeout:   10 * time.Second,
		concurrency:   8,
		webResults:    websearch.DefaultResults,
		emailProfiles: true,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	logger := cfg.logger

	platforms, err := profile.Select(cfg.platforms)
	if err != nil {
		return nil, err
	}
	if err := checkEngines(cfg.engines); err != nil {
		return nil, err
	}

	cache, err := openCache(cfg)
	if err != nil {
		return nil, err
	}
	engines := buildEngines(cfg, cache)

	builder := usersearch.New(
		usersearch.WithHTTPCache(cache),
		usersearch.WithLogger(logger),
		usersearch.WithCookieSource(cookieSource(cfg)),
		usersearch.WithPlatforms(platforms...),
		usersearch.WithCheckTimeout(cfg.httpTimeout),
	)
	phoneOpts := []phoneintel.Option{
		phoneintel.WithHTTPCache(cache),
		phoneintel.WithLogger(logger),
		phoneintel.WithDefaultRegion(cfg.defaultRegion),
	}
	if cfg.numLookupKey != "" {
		phoneOpts = append(phoneOpts, phoneintel.WithNumLookupKey(cfg.numLookupKey))
	}

	svcOpts := []smart.Option{
		smart.WithLogger(logger),
		smart.WithHTTPCache(cache),
		smart.WithProfileBuilder(builder),
		smart.WithEmailInvestigator(emailintel.New(
			emailintel.WithHTTPCache(cache),
			emailintel.WithLogger(logger),
			emailintel.WithHIBPKey(cfg.hibpKey),
			emailintel.WithGitHubToken(cfg.githubToken),
		)),
		smart.WithPhoneInvestigator(phoneintel.New(phoneOpts...)),
		smart.WithPersonInvestigator(personintel.New(
			personintel.WithProfileBuilder(builder),
			personintel.WithLogger(logger),
		)),
		smart.WithWebSearcher(websearch.NewMeta(engines, websearch.WithLogger(logger))),
		smart.WithConcurrency(cfg.concurrency),
		smart.WithWebResults(cfg.webResults),
		smart.WithExcludeNSFW(cfg.excludeNSFW),
		smart.WithEmailProfiles(cfg.emailProfiles),
	}
	if cfg.store != nil {
		svcOpts = append(svcOpts, smart.WithStore(cfg.store))
	}
	if cfg.observer != nil {
		svcOpts = append(svcOpts, smart.WithObserver(cfg.observer))
	}

	svc, err := smart.New(svcOpts...)
	if err != nil {
		return nil, errors.Join(err, closeCache(cache))
	}

	logger.DebugContext(ctx, "dossier service ready",
		"platforms", len(platforms),
		"engines", len(engines),
		"cache", cache != nil,
		"store", cfg.store != nil)
	return svc, nil
}

func openCache(cfg *config) (httpcache.Cacher, error) {
	switch {
	case cfg.noCache:
		return nil, nil //nolint:nilnil // a nil Cacher disables caching
	case cfg.redisAddr != "":
		c, err := httpcache.NewRedis(cfg.redisAddr, cfg.cacheTTL)
		if err != nil {
			return nil, fmt.Errorf("open redis cache: %w", err)
		}
		return c, nil
	case cfg.cacheDir != "":
		c, err := httpcache.NewWithPath(cfg.cacheTTL, cfg.cacheDir)
		if err != nil {
			return nil, fmt.Errorf("open cache: %w", err)
		}
		return c, nil
	default:
		c, err := httpcache.New(cfg.cacheTTL)
		if err != nil {
			return nil, fmt.Errorf("open cache: %w", err)
		}
		return c, nil
	}
}

func closeCache(c httpcache.Cacher) error {
	if cl, ok := c.(interface{ Close() error }); ok {
		return cl.Close()
	}
	return nil
}

// cookieSource chains explicit, environment, and browser cookies in that order.
func cookieSource(cfg *config) auth.Source {
	var chain auth.Chain
	if len(cfg.cookies) > 0 {
		chain = append(chain, auth.NewStaticSource(cfg.cookies))
	}
	chain = append(chain, auth.EnvSource{})
	if cfg.browserCookies {
		chain = append(chain, auth.NewBrowserSource(cfg.logger))
	}
	return chain
}

var engineNames = []string{"duckduckgo", "bing"}

func checkEngines(names []string) error {
	for _, n := range names {
		if !slices.Contains(engineNames, n) {
			return fmt.Errorf("unknown web search engine %q", n)
		}
	}
	return nil
}

func buildEngines(cfg *config, cache httpcache.Cacher) []websearch.Engine {
	opts := []websearch.Option{
		websearch.WithHTTPCache(cache),
		websearch.WithLogger(cfg.logger),
		websearch.WithHTTPClient(&http.Client{Timeout: cfg.httpTimeout}),
	}
	names := cfg.engines
	if len(names) == 0 {
		names = engineNames
	}
	engines := make([]websearch.Engine, 0, len(names))
	for _, n := range names {
		switch n {
		case "duckduckgo":
			engines = append(engines, websearch.NewDuckDuckGo(opts...))
		case "bing":
			engines = append(engines, websearch.NewBing(opts...))
		}
	}
	return engines
}
