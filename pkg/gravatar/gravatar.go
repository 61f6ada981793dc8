// Package gravatar looks up the public Gravatar profile behind an email address.
//
// Profiles are keyed by the SHA256 of the trimmed, lower-cased address. The JSON
// profile lists the accounts its owner verified elsewhere, which is what makes it
// worth fetching.
package gravatar

import (
	"context"
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/dossier/pkg/httpcache"
)

// ErrNotFound is returned when no Gravatar profile exists for the address.
var ErrNotFound = errors.New("gravatar profile not found")

// Profile is the useful subset of a Gravatar profile.
type Profile struct {
	Hash        string            `json:"hash"`
	URL         string            `json:"url"`
	Username    string            `json:"username,omitempty"`
	DisplayName string            `json:"display_name,omitempty"`
	AvatarURL   string            `json:"avatar_url,omitempty"`
	Location    string            `json:"location,omitempty"`
	Bio         string            `json:"bio,omitempty"`
	Accounts    map[string]string `json:"accounts,omitempty"` // service -> profile URL
	Links       []string          `json:"links,omitempty"`
}

// Client fetches Gravatar profiles.
type Client struct {
	http    *http.Client
	cache   httpcache.Cacher
	logger  *slog.Logger
	baseURL string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPCache reads profiles through c.
func WithHTTPCache(c httpcache.Cacher) Option {
	return func(cl *Client) { cl.cache = c }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) { cl.logger = logger }
}

// WithBaseURL points the client at another Gravatar-compatible host.
func WithBaseURL(u string) Option {
	return func(cl *Client) { cl.baseURL = strings.TrimRight(u, "/") }
}

// New creates a Gravatar client.
func New(opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		logger:  slog.Default(),
		baseURL: "https://gravatar.com",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch returns the profile for email, or ErrNotFound.
func (c *Client) Fetch(ctx context.Context, email string) (*Profile, error) {
	hash := HashEmail(email)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+hash+".json", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", httpcache.UserAgent)
	req.Header.Set("Accept", "application/json")

	body, err := httpcache.FetchURL(ctx, c.cache, c.http, req, c.logger)
	switch {
	case httpcache.StatusCode(err) == http.StatusNotFound:
		return nil, ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("gravatar: %w", err)
	}

	var doc struct {
		Entry []entry `json:"entry"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("parse gravatar response: %w", err)
	}
	if len(doc.Entry) == 0 {
		return nil, ErrNotFound
	}
	p := doc.Entry[0].profile()
	p.Hash = hash
	c.logger.DebugContext(ctx, "gravatar profile found", "hash", hash, "accounts", len(p.Accounts))
	return p, nil
}

type value struct {
	Value string `json:"value"`
}

type entry struct {
	ProfileURL        string  `json:"profileUrl"`
	PreferredUsername string  `json:"preferredUsername"`
	ThumbnailURL      string  `json:"thumbnailUrl"`
	DisplayName       string  `json:"displayName"`
	AboutMe           string  `json:"aboutMe"`
	CurrentLocation   string  `json:"currentLocation"`
	Photos            []value `json:"photos"`
	URLs              []value `json:"urls"`
	Name              struct {
		Formatted string `json:"formatted"`
	} `json:"name"`
	Accounts []struct {
		Domain    string `json:"domain"`
		URL       string `json:"url"`
		Shortname string `json:"shortname"`
	} `json:"accounts"`
}

func (e *entry) profile() *Profile {
	p := &Profile{
		URL:         e.ProfileURL,
		Username:    e.PreferredUsername,
		DisplayName: cmp.Or(e.DisplayName, e.Name.Formatted),
		AvatarURL:   e.ThumbnailURL,
		Location:    e.CurrentLocation,
		Bio:         e.AboutMe,
		Accounts:    map[string]string{},
	}
	if p.AvatarURL == "" && len(e.Photos) > 0 {
		p.AvatarURL = e.Photos[0].Value
	}
	for _, u := range e.URLs {
		p.Links = append(p.Links, u.Value)
	}
	for _, a := range e.Accounts {
		if a.URL != "" {
			p.Accounts[strings.ToLower(cmp.Or(a.Shortname, a.Domain))] = a.URL
		}
	}
	return p
}

// HashEmail returns the hex SHA256 of the trimmed, lower-cased address.
func HashEmail(email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:])
}
