// Package usersearch checks which platforms host a profile for a username.
package usersearch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codeGROOVE-dev/dossier/pkg/auth"
	"github.com/codeGROOVE-dev/dossier/pkg/httpcache"
	"github.com/codeGROOVE-dev/dossier/pkg/profile"
)

// ErrEmptyUsername is returned when BuildProfile is called without a username.
var ErrEmptyUsername = errors.New("empty username")

const (
	defaultConcurrency  = 16
	defaultCheckTimeout = 10 * time.Second
	maxRedirects        = 10
)

// Builder searches a username across platforms and assembles a profile.
type Builder struct {
	cache        httpcache.Cacher
	client       *http.Client
	logger       *slog.Logger
	cookies      auth.Source
	platforms    []profile.Platform
	concurrency  int
	checkTimeout time.Duration
}

// Option configures a Builder.
type Option func(*config)

type config struct {
	cache        httpcache.Cacher
	client       *http.Client
	logger       *slog.Logger
	cookies      auth.Source
	platforms    []profile.Platform
	concurrency  int
	checkTimeout time.Duration
}

// WithHTTPCache sets the HTTP response cache.
func WithHTTPCache(c httpcache.Cacher) Option {
	return func(cfg *config) { cfg.cache = c }
}

// WithHTTPClient sets the HTTP client. Its redirect policy is replaced.
func WithHTTPClient(c *http.Client) Option {
	return func(cfg *config) { cfg.client = c }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) { cfg.logger = logger }
}

// WithCookieSource supplies session cookies for platforms that require a login.
func WithCookieSource(src auth.Source) Option {
	return func(cfg *config) { cfg.cookies = src }
}

// WithPlatforms restricts the search to the given platforms.
func WithPlatforms(platforms ...profile.Platform) Option {
	return func(cfg *config) { cfg.platforms = platforms }
}

// WithConcurrency bounds the number of platform checks in flight.
func WithConcurrency(n int) Option {
	return func(cfg *config) { cfg.concurrency = n }
}

// WithCheckTimeout bounds each platform check.
func WithCheckTimeout(d time.Duration) Option {
	return func(cfg *config) { cfg.checkTimeout = d }
}

// New creates a Builder. Without WithPlatforms every registered platform is checked.
func New(opts ...Option) *Builder {
	cfg := &config{
		logger:       slog.Default(),
		concurrency:  defaultConcurrency,
		checkTimeout: defaultCheckTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.platforms == nil {
		cfg.platforms = profile.Platforms()
	}
	if cfg.concurrency <= 0 {
		cfg.concurrency = defaultConcurrency
	}

	client := &http.Client{Timeout: cfg.checkTimeout}
	if cfg.client != nil {
		c := *cfg.client
		client = &c
	}
	client.CheckRedirect = rejectHomepageRedirect

	return &Builder{
		cache:        cfg.cache,
		client:       client,
		logger:       cfg.logger,
		cookies:      cfg.cookies,
		platforms:    cfg.platforms,
		concurrency:  cfg.concurrency,
		checkTimeout: cfg.checkTimeout,
	}
}

// BuildProfile checks every configured platform for username and returns the platforms it was found on.
// A positive timeout bounds the whole search; checks still running when it expires are dropped.
func (b *Builder) BuildProfile(ctx context.Context, username string, excludeNSFW bool, timeout time.Duration) (*profile.Profile, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrEmptyUsername
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	b.logger.InfoContext(ctx, "building username profile", "username", username, "platforms", len(b.platforms))

	p := profile.New(username)
	var mu sync.Mutex
	var checked int

	g := new(errgroup.Group)
	g.SetLimit(b.concurrency)
	for _, pl := range b.platforms {
		if excludeNSFW && pl.NSFW() {
			continue
		}
		if !pl.ValidUsername(username) {
			continue
		}
		checked++
		g.Go(func() error {
			m, err := b.check(ctx, pl, username)
			if err != nil {
				b.logger.DebugContext(ctx, "platform check failed", "platform", pl.Name(), "error", err)
				return nil // errors handled via logging
			}
			mu.Lock()
			p.Add(pl.Name(), m)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // goroutines never return errors

	p.PlatformsSearched = checked
	b.logger.InfoContext(ctx, "username profile complete",
		"username", username,
		"found", p.FoundOnPlatforms,
		"searched", checked,
		"duration", time.Since(start))
	return p, nil
}

// check fetches one platform's profile URL and decides whether it is a real profile.
func (b *Builder) check(ctx context.Context, pl profile.Platform, username string) (profile.Match, error) {
	if ctx.Err() != nil {
		return profile.Match{}, ctx.Err()
	}
	ctx, cancel := context.WithTimeout(ctx, b.checkTimeout)
	defer cancel()

	target := pl.ProfileURL(username)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return profile.Match{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", httpcache.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	m := profile.Match{URL: target, Category: pl.Category()}
	if pl.AuthRequired() {
		cookies, err := b.platformCookies(ctx, pl.Name())
		if err != nil {
			return profile.Match{}, err
		}
		auth.SetCookieHeader(req, cookies)
		m.Authenticated = true
	}

	fetchStart := time.Now()
	body, err := httpcache.FetchURLWithValidator(ctx, b.cache, b.client, req, b.logger, httpcache.NotChallenge)
	m.ResponseTime = time.Since(fetchStart)
	if err != nil {
		code := httpcache.StatusCode(err)
		if code == 0 {
			return profile.Match{}, err
		}
		m.StatusCode = code
		return m, nil
	}

	if !httpcache.NotChallenge(body) {
		return profile.Match{}, fmt.Errorf("%s: %w", pl.Name(), profile.ErrRateLimited)
	}
	m.StatusCode = http.StatusOK
	m.Found = looksLikeProfile(body, username, notFoundMarkers(pl))
	return m, nil
}

func (b *Builder) platformCookies(ctx context.Context, platform string) (map[string]string, error) {
	if b.cookies == nil {
		return nil, fmt.Errorf("%s: %w", platform, profile.ErrNoCookies)
	}
	cookies, err := b.cookies.Cookies(ctx, platform)
	if err != nil {
		return nil, fmt.Errorf("%s cookies: %w", platform, err)
	}
	if len(cookies) == 0 {
		return nil, fmt.Errorf("%s: %w", platform, profile.ErrAuthRequired)
	}
	return cookies, nil
}

// strongNotFound matches pages that say outright that there is no such profile.
var strongNotFound = regexp.MustCompile(`user.?not.?found|profile.?not.?found|account.?not.?found|page.?not.?found|error.?404`)

// looksLikeProfile rejects 200 pages carrying a site's own "no such user" text, and pages
// that announce a missing user without mentioning the username.
func looksLikeProfile(body []byte, username string, markers []string) bool {
	content := strings.ToLower(string(body))
	for _, m := range markers {
		if strings.Contains(content, m) {
			return false
		}
	}
	if strings.Contains(content, strings.ToLower(username)) {
		return true
	}
	return !strongNotFound.MatchString(content)
}

func notFoundMarkers(pl profile.Platform) []string {
	if s, ok := pl.(interface{ NotFoundMarkers() []string }); ok {
		return s.NotFoundMarkers()
	}
	return nil
}

// rootPaths are landing pages that sites redirect unknown profiles to.
var rootPaths = map[string]bool{
	"": true, "/": true, "/index.html": true, "/home": true, "/index": true, "/index.php": true,
}

// rejectHomepageRedirect stops at the redirect when a profile URL bounces to the site's landing page.
// The redirect status then reaches the caller as a not-found answer.
func rejectHomepageRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}
	if !rootPaths[via[0].URL.Path] && rootPaths[req.URL.Path] {
		return http.ErrUseLastResponse
	}
	return nil
}
