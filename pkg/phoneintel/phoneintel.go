// Package phoneintel parses, validates, and enriches phone numbers.
package phoneintel

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nyaruka/phonenumbers"
	"golang.org/x/sync/errgroup"

	"github.com/codeGROOVE-dev/dossier/pkg/httpcache"
	"github.com/codeGROOVE-dev/dossier/pkg/whatsapp"
)

// ErrUnparseable is returned by Parse when no region interpretation yields a valid number.
var ErrUnparseable = errors.New("unparseable phone number")

// commonRegions are tried in order when neither the caller nor the number names a region.
var commonRegions = []string{"US", "GB", "CA", "AU", "IN", "DE", "FR", "IT", "ES", "BR"}

// Metadata holds enrichment facts that do not fit the fixed fields.
type Metadata struct {
	SocialPlatforms    []string          `json:"social_platforms"`
	SocialLinks        map[string]string `json:"social_links"` // platform -> chat link
	PossibleVOIP       bool              `json:"possible_voip"`
	AutoDetectedRegion bool              `json:"auto_detected_region"`
}

// Result is everything learned about one phone number.
//
//nolint:govet // fieldalignment: intentional layout for readability
type Result struct {
	Phone                  string    `json:"phone"`
	Valid                  bool      `json:"valid"`
	CountryCode            int       `json:"country_code,omitempty"`
	RegionCode             string    `json:"region_code,omitempty"`
	Location               string    `json:"location,omitempty"`
	Carrier                string    `json:"carrier,omitempty"`
	LineType               string    `json:"line_type"`
	Timezones              []string  `json:"timezones"`
	FormattedInternational string    `json:"formatted_international"`
	FormattedNational      string    `json:"formatted_national"`
	FormattedE164          string    `json:"formatted_e164"`
	ReputationScore        float64   `json:"reputation_score"`
	AssociatedName         string    `json:"associated_name,omitempty"`
	AssociatedAddresses    []string  `json:"associated_addresses"`
	Metadata               Metadata  `json:"metadata"`
	CheckedAt              time.Time `json:"checked_at"`
}

// Client investigates phone numbers.
type Client struct {
	httpClient       *http.Client
	cache            httpcache.Cacher
	logger           *slog.Logger
	whatsapp         *whatsapp.Client
	telegramBaseURL  string
	numLookupKey     string
	numLookupBaseURL string
	defaultRegion    string
	social           bool
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

// WithNumLookupKey enables reverse name lookups through NumLookupAPI.
func WithNumLookupKey(key string) Option {
	return func(c *Client) { c.numLookupKey = key }
}

// WithNumLookupBaseURL overrides the NumLookupAPI root.
func WithNumLookupBaseURL(u string) Option {
	return func(c *Client) { c.numLookupBaseURL = strings.TrimRight(u, "/") }
}

// WithWhatsApp sets the client used to probe wa.me links.
func WithWhatsApp(w *whatsapp.Client) Option {
	return func(c *Client) { c.whatsapp = w }
}

// WithTelegramBaseURL replaces https://t.me for testing.
func WithTelegramBaseURL(u string) Option {
	return func(c *Client) { c.telegramBaseURL = strings.TrimRight(u, "/") }
}

// WithDefaultRegion sets the region assumed when a call does not pass one.
func WithDefaultRegion(region string) Option {
	return func(c *Client) { c.defaultRegion = strings.ToUpper(region) }
}

// WithoutSocial disables the messenger presence probes.
func WithoutSocial() Option {
	return func(c *Client) { c.social = false }
}

// New creates a phone intelligence client.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient:       &http.Client{Timeout: 10 * time.Second},
		logger:           slog.Default(),
		telegramBaseURL:  "https://t.me",
		numLookupBaseURL: "https://api.numlookupapi.com/v1",
		social:           true,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.whatsapp == nil {
		c.whatsapp = whatsapp.New(whatsapp.WithHTTPCache(c.cache), whatsapp.WithLogger(c.logger))
	}
	return c
}

// Parse interprets phone, trying the given region, then no region, then common regions,
// then the digits as an international number. It reports whether the region was guessed.
func Parse(phone, region string) (num *phonenumbers.PhoneNumber, autoDetected bool, err error) {
	phone = strings.TrimSpace(phone)
	if region != "" {
		if n, err := phonenumbers.Parse(phone, strings.ToUpper(region)); err == nil && phonenumbers.IsValidNumber(n) {
			return n, false, nil
		}
	}

	if n, err := phonenumbers.Parse(phone, ""); err == nil && phonenumbers.IsValidNumber(n) {
		return n, true, nil
	}
	for _, r := range commonRegions {
		if n, err := phonenumbers.Parse(phone, r); err == nil && phonenumbers.IsValidNumber(n) {
			return n, true, nil
		}
	}
	if !strings.HasPrefix(phone, "+") {
		if n, err := phonenumbers.Parse("+"+phone, ""); err == nil && phonenumbers.IsValidNumber(n) {
			return n, true, nil
		}
	}
	return nil, false, ErrUnparseable
}

var lineTypes = map[phonenumbers.PhoneNumberType]string{
	phonenumbers.FIXED_LINE:           "fixed_line",
	phonenumbers.MOBILE:               "mobile",
	phonenumbers.FIXED_LINE_OR_MOBILE: "fixed_or_mobile",
	phonenumbers.TOLL_FREE:            "toll_free",
	phonenumbers.PREMIUM_RATE:         "premium_rate",
	phonenumbers.SHARED_COST:          "shared_cost",
	phonenumbers.VOIP:                 "voip",
	phonenumbers.PERSONAL_NUMBER:      "personal",
	phonenumbers.PAGER:                "pager",
	phonenumbers.UAN:                  "uan",
	phonenumbers.VOICEMAIL:            "voicemail",
}

// LineType names the kind of line a number belongs to.
func LineType(num *phonenumbers.PhoneNumber) string {
	if t, ok := lineTypes[phonenumbers.GetNumberType(num)]; ok {
		return t
	}
	return "unknown"
}

// Reputation scores a number from 0 to 100.
func Reputation(valid bool, lineType, carrier, location string) float64 {
	if !valid {
		return 0
	}
	score := 100.0
	switch lineType {
	case "voip":
		score -= 20
	case "unknown":
		score -= 30
	}
	if carrier == "" {
		score -= 15
	}
	if location == "" {
		score -= 10
	}
	return max(0, score)
}

// Investigate parses phone and enriches valid numbers with carrier, location, messenger
// presence, and an associated name. Unparseable numbers come back with Valid unset and
// no lookups performed. An empty region falls back to the client's default region.
func (c *Client) Investigate(ctx context.Context, phone, region string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if region == "" {
		region = c.defaultRegion
	}

	res := &Result{
		Phone:                  phone,
		LineType:               "unknown",
		Timezones:              []string{},
		FormattedInternational: phone,
		FormattedNational:      phone,
		FormattedE164:          phone,
		AssociatedAddresses:    []string{},
		Metadata:               Metadata{SocialPlatforms: []string{}, SocialLinks: map[string]string{}},
		CheckedAt:              time.Now(),
	}

	num, auto, err := Parse(phone, region)
	if err != nil {
		c.logger.DebugContext(ctx, "phone not parseable", "phone", phone, "region", region)
		return res, nil
	}

	res.Valid = true
	res.CountryCode = int(num.GetCountryCode())
	res.RegionCode = phonenumbers.GetRegionCodeForNumber(num)
	res.LineType = LineType(num)
	res.FormattedInternational = phonenumbers.Format(num, phonenumbers.INTERNATIONAL)
	res.FormattedNational = phonenumbers.Format(num, phonenumbers.NATIONAL)
	res.FormattedE164 = phonenumbers.Format(num, phonenumbers.E164)
	res.Metadata.PossibleVOIP = res.LineType == "voip"
	res.Metadata.AutoDetectedRegion = auto

	if loc, err := phonenumbers.GetGeocodingForNumber(num, "en"); err == nil {
		res.Location = loc
	}
	if carrier, err := phonenumbers.GetCarrierForNumber(num, "en"); err == nil {
		res.Carrier = carrier
	}
	if tz, err := phonenumbers.GetTimezonesForNumber(num); err == nil && tz != nil {
		res.Timezones = tz
	}

	c.enrich(ctx, res)

	res.ReputationScore = Reputation(true, res.LineType, res.Carrier, res.Location)
	c.logger.DebugContext(ctx, "phone investigated",
		"phone", res.FormattedE164,
		"region", res.RegionCode,
		"line_type", res.LineType,
		"social", len(res.Metadata.SocialPlatforms))
	return res, nil
}

// enrich runs the network lookups concurrently. Each one fails soft.
func (c *Client) enrich(ctx context.Context, res *Result) {
	e164 := res.FormattedE164
	var whatsappOK, telegramOK bool

	g, gctx := errgroup.WithContext(ctx)
	if c.social {
		g.Go(func() error {
			ok, err := c.whatsapp.Registered(gctx, e164)
			if err != nil {
				c.logger.DebugContext(gctx, "whatsapp probe failed", "phone", e164, "error", err)
				return nil // errors handled via logging
			}
			whatsappOK = ok
			return nil
		})
		g.Go(func() error {
			ok, err := c.telegramRegistered(gctx, e164)
			if err != nil {
				c.logger.DebugContext(gctx, "telegram probe failed", "phone", e164, "error", err)
				return nil // errors handled via logging
			}
			telegramOK = ok
			return nil
		})
	}
	if c.numLookupKey != "" {
		g.Go(func() error {
			name, err := c.lookupName(gctx, e164)
			if err != nil {
				c.logger.DebugContext(gctx, "name lookup failed", "phone", e164, "error", err)
				return nil // errors handled via logging
			}
			res.AssociatedName = name
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // goroutines never return errors

	if whatsappOK {
		res.Metadata.SocialPlatforms = append(res.Metadata.SocialPlatforms, "whatsapp")
		res.Metadata.SocialLinks["whatsapp"] = whatsapp.LinkURL(e164)
	}
	if telegramOK {
		res.Metadata.SocialPlatforms = append(res.Metadata.SocialPlatforms, "telegram")
		res.Metadata.SocialLinks["telegram"] = telegramLink(e164)
	}
}
