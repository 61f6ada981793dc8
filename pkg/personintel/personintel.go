// Package personintel gathers what can be found about a named person: likely social
// accounts derived from the name, plus whatever a configured records provider knows.
package personintel

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/codeGROOVE-dev/dossier/pkg/profile"
)

// ErrIncompleteName is returned when a query lacks a first or last name.
var ErrIncompleteName = errors.New("first and last name are required")

const (
	maxVariantsSearched = 3
	variantTimeout      = 30 * time.Second
)

// Query names the person to investigate.
type Query struct {
	First  string
	Middle string
	Last   string
	State  string
}

// FullName joins the name parts, skipping an empty middle name.
func (q Query) FullName() string {
	if q.Middle != "" {
		return q.First + " " + q.Middle + " " + q.Last
	}
	return q.First + " " + q.Last
}

// Records is what a public-records source knows about a person.
type Records struct {
	Age            int      `json:"age,omitempty"`
	AgeRange       string   `json:"age_range,omitempty"`
	Addresses      []string `json:"addresses"`
	PhoneNumbers   []string `json:"phone_numbers"`
	EmailAddresses []string `json:"email_addresses"`
	Relatives      []string `json:"relatives"`
	Associates     []string `json:"associates"`
	Employment     []string `json:"employment"`
	Education      []string `json:"education"`
}

// RecordsProvider looks a person up in a public-records source.
type RecordsProvider interface {
	Records(ctx context.Context, q Query) (Records, error)
}

// ProfileBuilder searches platforms for a username.
type ProfileBuilder interface {
	BuildProfile(ctx context.Context, username string, excludeNSFW bool, timeout time.Duration) (*profile.Profile, error)
}

// Metadata describes how a Result was produced.
type Metadata struct {
	FullName    string `json:"full_name"`
	SearchState string `json:"search_state,omitempty"`
}

// Result is everything learned about one person.
//
//nolint:govet // fieldalignment: intentional layout for readability
type Result struct {
	FirstName  string `json:"first_name"`
	MiddleName string `json:"middle_name,omitempty"`
	LastName   string `json:"last_name"`
	State      string `json:"state,omitempty"`
	Records
	SocialProfiles map[string]string `json:"social_profiles"` // platform -> profile URL
	Metadata       Metadata          `json:"metadata"`
	CheckedAt      time.Time         `json:"checked_at"`
}

// Client investigates people.
type Client struct {
	builder ProfileBuilder
	records RecordsProvider
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithProfileBuilder enables social account discovery through username variants.
func WithProfileBuilder(b ProfileBuilder) Option {
	return func(c *Client) { c.builder = b }
}

// WithRecordsProvider sets the public-records source.
func WithRecordsProvider(p RecordsProvider) Option {
	return func(c *Client) { c.records = p }
}

// New creates a person intelligence client.
func New(opts ...Option) *Client {
	c := &Client{logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UsernameVariants returns the handles a person with this name commonly registers,
// in the order they are tried.
func UsernameVariants(first, middle, last string) []string {
	first, middle, last = strings.ToLower(first), strings.ToLower(middle), strings.ToLower(last)
	if first == "" || last == "" {
		return nil
	}
	f := initial(first)
	variants := []string{
		first + last,
		first + "." + last,
		first + "_" + last,
		f + last,
	}
	if middle != "" {
		m := initial(middle)
		variants = append(variants, first+m+last, first+"."+m+"."+last)
	}
	return variants
}

func initial(s string) string {
	r, _ := utf8.DecodeRuneInString(s)
	return string(r)
}

// Investigate runs records and social discovery concurrently. Each source fails soft;
// only an incomplete name is an error.
func (c *Client) Investigate(ctx context.Context, q Query) (*Result, error) {
	q.First, q.Middle, q.Last = strings.TrimSpace(q.First), strings.TrimSpace(q.Middle), strings.TrimSpace(q.Last)
	if q.First == "" || q.Last == "" {
		return nil, ErrIncompleteName
	}

	c.logger.InfoContext(ctx, "investigating person", "name", q.FullName(), "state", q.State)

	var records Records
	social := map[string]string{}

	g, gctx := errgroup.WithContext(ctx)
	if c.records != nil {
		g.Go(func() error {
			r, err := c.records.Records(gctx, q)
			if err != nil {
				c.logger.DebugContext(gctx, "records lookup failed", "name", q.FullName(), "error", err)
				return nil // errors handled via logging
			}
			records = r
			return nil
		})
	}
	if c.builder != nil {
		g.Go(func() error {
			social = c.discoverSocial(gctx, q)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // goroutines never return errors

	return &Result{
		FirstName:      q.First,
		MiddleName:     q.Middle,
		LastName:       q.Last,
		State:          q.State,
		Records:        records.normalized(),
		SocialProfiles: social,
		Metadata:       Metadata{FullName: q.FullName(), SearchState: q.State},
		CheckedAt:      time.Now(),
	}, nil
}

// discoverSocial searches the leading username variants in order. The first variant
// found on a platform keeps it.
func (c *Client) discoverSocial(ctx context.Context, q Query) map[string]string {
	found := map[string]string{}
	variants := UsernameVariants(q.First, q.Middle, q.Last)
	if len(variants) > maxVariantsSearched {
		variants = variants[:maxVariantsSearched]
	}
	for _, username := range variants {
		if ctx.Err() != nil {
			break
		}
		p, err := c.builder.BuildProfile(ctx, username, true, variantTimeout)
		if err != nil {
			c.logger.DebugContext(ctx, "variant search failed", "username", username, "error", err)
			continue
		}
		for _, name := range p.PlatformNames() {
			if _, ok := found[name]; !ok {
				found[name] = p.Platforms[name].URL
			}
		}
	}
	return found
}

// normalized replaces nil lists with empty ones so results encode as [] rather than null.
func (r Records) normalized() Records {
	for _, l := range []*[]string{
		&r.Addresses, &r.PhoneNumbers, &r.EmailAddresses, &r.Relatives,
		&r.Associates, &r.Employment, &r.Education,
	} {
		if *l == nil {
			*l = []string{}
		}
	}
	return r
}
