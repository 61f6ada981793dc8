// Package whatsapp builds and parses wa.me click-to-chat links and probes whether a number has one.
package whatsapp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/dossier/pkg/httpcache"
)

var (
	waMePattern     = regexp.MustCompile(`(?i)(?:^|//|\.)wa\.me/\+?(\d{7,15})`)
	phoneQueryParam = regexp.MustCompile(`phone=\+?(\d{7,15})`)
)

// invalidMarker is shown on the wa.me landing page for numbers WhatsApp does not know.
const invalidMarker = "phone number shared via url is invalid"

// ExtractPhone pulls the phone digits from wa.me and api.whatsapp.com links.
func ExtractPhone(url string) string {
	if m := waMePattern.FindStringSubmatch(url); len(m) > 1 {
		return m[1]
	}
	if m := phoneQueryParam.FindStringSubmatch(url); len(m) > 1 {
		return m[1]
	}
	return ""
}

// LinkURL returns the click-to-chat link for an E.164 number or bare digits.
func LinkURL(phone string) string {
	return "https://wa.me/" + strings.TrimPrefix(phone, "+")
}

// Client probes wa.me landing pages.
type Client struct {
	httpClient *http.Client
	cache      httpcache.Cacher
	logger     *slog.Logger
	baseURL    string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPCache sets the HTTP cache.
func WithHTTPCache(c httpcache.Cacher) Option {
	return func(cl *Client) { cl.cache = c }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithBaseURL replaces https://wa.me for testing.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// New creates a WhatsApp client.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     slog.Default(),
		baseURL:    "https://wa.me",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Registered reports whether the wa.me landing page for phone accepts the number.
func (c *Client) Registered(ctx context.Context, phone string) (bool, error) {
	digits := strings.TrimPrefix(phone, "+")
	if ExtractPhone("https://wa.me/"+digits) != digits {
		return false, fmt.Errorf("not a phone number: %q", phone)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+digits, http.NoBody)
	if err != nil {
		return false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", httpcache.UserAgent)

	body, err := httpcache.FetchURL(ctx, c.cache, c.httpClient, req, c.logger)
	if err != nil {
		if code := httpcache.StatusCode(err); code >= 400 && code < 500 {
			return false, nil
		}
		return false, err
	}

	ok := !strings.Contains(strings.ToLower(string(body)), invalidMarker)
	c.logger.DebugContext(ctx, "whatsapp probe", "phone", digits, "registered", ok)
	return ok, nil
}
