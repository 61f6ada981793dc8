// Package emailintel validates email addresses and gathers what is publicly known about them:
// breach exposure, provider, disposability, and linked online profiles.
package emailintel

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codeGROOVE-dev/dossier/pkg/gravatar"
	"github.com/codeGROOVE-dev/dossier/pkg/httpcache"
)

// ErrInvalidEmail is returned by Validate for addresses that fail the format check.
var ErrInvalidEmail = errors.New("invalid email address")

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

var disposableDomains = map[string]bool{
	"tempmail.com":      true,
	"guerrillamail.com": true,
	"10minutemail.com":  true,
	"mailinator.com":    true,
	"throwaway.email":   true,
	"getnada.com":       true,
	"maildrop.cc":       true,
	"tempr.email":       true,
	"sharklasers.com":   true,
	"trashmail.com":     true,
}

var providers = map[string]string{
	"gmail.com":      "Google Gmail",
	"yahoo.com":      "Yahoo Mail",
	"outlook.com":    "Microsoft Outlook",
	"hotmail.com":    "Microsoft Hotmail",
	"icloud.com":     "Apple iCloud",
	"protonmail.com": "ProtonMail",
	"aol.com":        "AOL Mail",
	"mail.com":       "Mail.com",
	"zoho.com":       "Zoho Mail",
	"yandex.com":     "Yandex Mail",
}

// Result is everything learned about one email address.
//
//nolint:govet // fieldalignment: intentional layout for readability
type Result struct {
	Email           string            `json:"email"`
	Valid           bool              `json:"valid"`
	Exists          bool              `json:"exists"`
	Breached        bool              `json:"breached"`
	BreachCount     int               `json:"breach_count"`
	Breaches        []string          `json:"breaches"`
	Provider        string            `json:"provider,omitempty"`
	Domain          string            `json:"domain,omitempty"`
	Disposable      bool              `json:"disposable"`
	ReputationScore float64           `json:"reputation_score"`
	OnlineProfiles  map[string]string `json:"online_profiles"` // platform -> profile URL
	CheckedAt       time.Time         `json:"checked_at"`
}

// Client investigates email addresses.
type Client struct {
	httpClient    *http.Client
	cache         httpcache.Cacher
	logger        *slog.Logger
	gravatar      *gravatar.Client
	hibpKey       string
	hibpBaseURL   string
	githubToken   string
	githubBaseURL string
}

// Option configures a Client.
type Option func(*config)

type config struct {
	cache         httpcache.Cacher
	logger        *slog.Logger
	gravatar      *gravatar.Client
	hibpKey       string
	hibpBaseURL   string
	githubToken   string
	githubBaseURL string
}

// WithHTTPCache sets the HTTP cache.
func WithHTTPCache(c httpcache.Cacher) Option {
	return func(cfg *config) { cfg.cache = c }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) { cfg.logger = logger }
}

// WithHIBPKey enables breach lookups against Have I Been Pwned.
func WithHIBPKey(key string) Option {
	return func(cfg *config) { cfg.hibpKey = key }
}

// WithHIBPBaseURL overrides the Have I Been Pwned API root.
func WithHIBPBaseURL(u string) Option {
	return func(cfg *config) { cfg.hibpBaseURL = strings.TrimRight(u, "/") }
}

// WithGitHubToken authenticates GitHub user searches.
func WithGitHubToken(token string) Option {
	return func(cfg *config) { cfg.githubToken = token }
}

// WithGitHubBaseURL overrides the GitHub API root.
func WithGitHubBaseURL(u string) Option {
	return func(cfg *config) { cfg.githubBaseURL = strings.TrimRight(u, "/") }
}

// WithGravatar sets the Gravatar client used for profile discovery.
func WithGravatar(g *gravatar.Client) Option {
	return func(cfg *config) { cfg.gravatar = g }
}

// New creates an email intelligence client.
func New(opts ...Option) *Client {
	cfg := &config{
		logger:        slog.Default(),
		hibpBaseURL:   "https://haveibeenpwned.com/api/v3",
		githubBaseURL: "https://api.github.com",
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.gravatar == nil {
		cfg.gravatar = gravatar.New(gravatar.WithHTTPCache(cfg.cache), gravatar.WithLogger(cfg.logger))
	}

	return &Client{
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		cache:         cfg.cache,
		logger:        cfg.logger,
		gravatar:      cfg.gravatar,
		hibpKey:       cfg.hibpKey,
		hibpBaseURL:   cfg.hibpBaseURL,
		githubToken:   cfg.githubToken,
		githubBaseURL: cfg.githubBaseURL,
	}
}

// Validate reports whether email is well formed.
func Validate(email string) error {
	if !emailPattern.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

// Domain returns the lower-cased part after the last "@".
func Domain(email string) string {
	return strings.ToLower(email[strings.LastIndex(email, "@")+1:])
}

// IsDisposable reports whether the address belongs to a throwaway mail service.
func IsDisposable(email string) bool {
	return disposableDomains[Domain(email)]
}

// Provider returns the well-known mail provider for the address, or "".
func Provider(email string) string {
	return providers[Domain(email)]
}

// Reputation scores an address from 0 to 100.
func Reputation(breached bool, breachCount int, disposable bool, provider string) float64 {
	score := 100.0
	if disposable {
		score -= 50
	}
	if breached {
		score -= float64(min(breachCount*5, 30))
	}
	if provider == "" {
		score -= 10
	}
	return max(0, score)
}

// Investigate gathers intelligence on email. Invalid addresses come back with Valid unset
// and no lookups performed. When searchProfiles is set, Gravatar and GitHub are searched
// for accounts registered to the address. Individual lookup failures are logged and skipped.
func (c *Client) Investigate(ctx context.Context, email string, searchProfiles bool) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	email = strings.TrimSpace(email)
	res := &Result{
		Email:          email,
		Breaches:       []string{},
		OnlineProfiles: map[string]string{},
		CheckedAt:      time.Now(),
	}
	if Validate(email) != nil {
		return res, nil
	}

	res.Valid = true
	res.Domain = Domain(email)
	res.Disposable = IsDisposable(email)
	res.Provider = Provider(email)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		breaches, err := c.breaches(gctx, email)
		if err != nil {
			c.logger.DebugContext(gctx, "breach check failed", "email", email, "error", err)
			return nil // errors handled via logging
		}
		mu.Lock()
		res.Breaches = breaches
		res.BreachCount = len(breaches)
		res.Breached = len(breaches) > 0
		mu.Unlock()
		return nil
	})

	if searchProfiles {
		g.Go(func() error {
			prof, err := c.gravatar.Fetch(gctx, email)
			if err != nil {
				if !errors.Is(err, gravatar.ErrNotFound) {
					c.logger.DebugContext(gctx, "gravatar lookup failed", "email", email, "error", err)
				}
				return nil // errors handled via logging
			}
			mu.Lock()
			res.OnlineProfiles["gravatar"] = prof.URL
			for name, u := range prof.Accounts {
				res.OnlineProfiles[name] = u
			}
			mu.Unlock()
			return nil
		})
		g.Go(func() error {
			u, err := c.githubByEmail(gctx, email)
			if err != nil {
				c.logger.DebugContext(gctx, "github email search failed", "email", email, "error", err)
				return nil // errors handled via logging
			}
			if u != "" {
				mu.Lock()
				res.OnlineProfiles["github"] = u
				mu.Unlock()
			}
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // goroutines never return errors

	res.Exists = len(res.OnlineProfiles) > 0
	res.ReputationScore = Reputation(res.Breached, res.BreachCount, res.Disposable, res.Provider)

	c.logger.DebugContext(ctx, "email investigated",
		"email", email,
		"breaches", res.BreachCount,
		"profiles", len(res.OnlineProfiles),
		"reputation", res.ReputationScore)
	return res, nil
}
