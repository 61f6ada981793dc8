// Package smart turns free-form text about a target into scored identity candidates.
//
// A search extracts usernames, emails, phone numbers, and names from the text, looks
// each one up concurrently, scores every result as a candidate, and boosts candidates
// that correlate with each other. A failed lookup only removes its own identifier from
// the result; Search itself never fails.
package smart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/codeGROOVE-dev/dossier/pkg/correlation"
	"github.com/codeGROOVE-dev/dossier/pkg/emailintel"
	"github.com/codeGROOVE-dev/dossier/pkg/httpcache"
	"github.com/codeGROOVE-dev/dossier/pkg/identifier"
	"github.com/codeGROOVE-dev/dossier/pkg/personintel"
	"github.com/codeGROOVE-dev/dossier/pkg/phoneintel"
	"github.com/codeGROOVE-dev/dossier/pkg/profile"
	"github.com/codeGROOVE-dev/dossier/pkg/store"
	"github.com/codeGROOVE-dev/dossier/pkg/usersearch"
	"github.com/codeGROOVE-dev/dossier/pkg/websearch"
)

const (
	defaultConcurrency = 8
	defaultWebResults  = 10
)

// Service runs smart searches. It keeps no per-search state, so one Service may serve
// concurrent searches when its collaborators allow it.
type Service struct {
	profiles   ProfileBuilder
	email      EmailInvestigator
	phone      PhoneInvestigator
	person     PersonInvestigator
	web        WebSearcher
	correlator Correlator
	store      store.Store
	observer   Observer
	logger     *slog.Logger
	cache      httpcache.Cacher

	concurrency         int
	webResults          int
	excludeNSFW         bool
	searchEmailProfiles bool
	noDefaults          bool
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithHTTPCache sets the cache used by the default collaborators. The service closes
// it on Close if it implements io.Closer.
func WithHTTPCache(c httpcache.Cacher) Option {
	return func(s *Service) { s.cache = c }
}

// WithProfileBuilder sets the username profile builder.
func WithProfileBuilder(b ProfileBuilder) Option {
	return func(s *Service) { s.profiles = b }
}

// WithEmailInvestigator sets the email intelligence source.
func WithEmailInvestigator(e EmailInvestigator) Option {
	return func(s *Service) { s.email = e }
}

// WithPhoneInvestigator sets the phone intelligence source.
func WithPhoneInvestigator(p PhoneInvestigator) Option {
	return func(s *Service) { s.phone = p }
}

// WithPersonInvestigator sets the person intelligence source.
func WithPersonInvestigator(p PersonInvestigator) Option {
	return func(s *Service) { s.person = p }
}

// WithWebSearcher sets the web search source.
func WithWebSearcher(w WebSearcher) Option {
	return func(s *Service) { s.web = w }
}

// WithCorrelator replaces the correlation analyzer.
func WithCorrelator(c Correlator) Option {
	return func(s *Service) { s.correlator = c }
}

// WithStore enables persistence. The service closes the store on Close.
func WithStore(st store.Store) Option {
	return func(s *Service) { s.store = st }
}

// WithObserver receives lookup and search timings.
func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

// WithConcurrency bounds how many lookups of one kind run at once (default 8). Each
// identifier kind has its own bound.
func WithConcurrency(n int) Option {
	return func(s *Service) { s.concurrency = n }
}

// WithWebResults sets how many web results are kept per identifier (default 10).
func WithWebResults(n int) Option {
	return func(s *Service) { s.webResults = n }
}

// WithExcludeNSFW skips adult platforms during username searches.
func WithExcludeNSFW(exclude bool) Option {
	return func(s *Service) { s.excludeNSFW = exclude }
}

// WithEmailProfiles controls whether email lookups also search for linked online
// profiles. It is on by default.
func WithEmailProfiles(search bool) Option {
	return func(s *Service) { s.searchEmailProfiles = search }
}

// WithoutDefaults leaves unset collaborators unset instead of building the network-backed
// defaults. Identifiers whose collaborator is unset are not looked up.
func WithoutDefaults() Option {
	return func(s *Service) { s.noDefaults = true }
}

// New creates a Service. Collaborators not supplied through options get the built-in
// network clients unless WithoutDefaults is given.
func New(opts ...Option) (*Service, error) {
	s := &Service{
		logger:              slog.Default(),
		correlator:          correlation.New(),
		concurrency:         defaultConcurrency,
		webResults:          defaultWebResults,
		searchEmailProfiles: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.concurrency < 1 {
		return nil, fmt.Errorf("concurrency must be positive, got %d", s.concurrency)
	}
	if s.webResults < 1 {
		return nil, fmt.Errorf("web results must be positive, got %d", s.webResults)
	}
	if s.observer == nil {
		s.observer = nopObserver{}
	}
	if !s.noDefaults {
		s.applyDefaults()
	}
	return s, nil
}

func (s *Service) applyDefaults() {
	if s.profiles == nil {
		s.profiles = usersearch.New(usersearch.WithHTTPCache(s.cache), usersearch.WithLogger(s.logger))
	}
	if s.email == nil {
		s.email = emailintel.New(emailintel.WithHTTPCache(s.cache), emailintel.WithLogger(s.logger))
	}
	if s.phone == nil {
		s.phone = phoneintel.New(phoneintel.WithHTTPCache(s.cache), phoneintel.WithLogger(s.logger))
	}
	if s.person == nil {
		s.person = personintel.New(personintel.WithProfileBuilder(s.profiles), personintel.WithLogger(s.logger))
	}
	if s.web == nil {
		s.web = websearch.NewMeta(nil, websearch.WithHTTPCache(s.cache), websearch.WithLogger(s.logger))
	}
}

// SearchOption adjusts a single search.
type SearchOption func(*searchOptions)

type searchOptions struct {
	timeout time.Duration
	persist bool
}

// WithTimeout is passed to the profile builder for each username. Other lookups are
// bounded by ctx and their own client timeouts.
func WithTimeout(d time.Duration) SearchOption {
	return func(o *searchOptions) { o.timeout = d }
}

// WithPersist saves the result to the store after the search. A persistence failure is
// logged and leaves Result.TargetID at zero.
func WithPersist() SearchOption {
	return func(o *searchOptions) { o.persist = true }
}

// Search runs a smart search. It always returns a result; lookups that fail are
// logged and left out.
func (s *Service) Search(ctx context.Context, in Input, opts ...SearchOption) *Result {
	var o searchOptions
	for _, opt := range opts {
		opt(&o)
	}

	start := time.Now()
	ids := identifier.Extract(in)
	s.logger.InfoContext(ctx, "starting smart search",
		"usernames", len(ids.Usernames),
		"emails", len(ids.Emails),
		"phones", len(ids.Phones),
		"names", len(ids.Names))

	lookups := s.gather(ctx, ids, in.Region, o.timeout)
	cands := Boost(ctx, s.correlator, BuildCandidates(lookups), s.logger)
	if cands == nil {
		cands = []*Candidate{}
	}

	res := &Result{
		Input:            in,
		Identifiers:      ids,
		Lookups:          lookups,
		Candidates:       cands,
		Patterns:         detectPatterns(ctx, s.correlator, cands, s.logger),
		UsernameOverlaps: usernameOverlaps(lookups.UsernameProfiles),
		StartedAt:        start,
	}
	res.Duration = time.Since(start)

	if o.persist {
		id, err := s.Persist(ctx, res, start)
		switch {
		case errors.Is(err, ErrNoStore):
			s.logger.DebugContext(ctx, "no store configured, skipping persistence")
		case err != nil:
			s.logger.WarnContext(ctx, "failed to persist smart search", "error", err)
		default:
			res.TargetID = id
		}
	}

	s.observer.SearchDone(len(cands), res.Duration)
	s.logger.InfoContext(ctx, "smart search complete",
		"candidates", len(cands),
		"duration", res.Duration)
	return res
}

func usernameOverlaps(profiles map[string]*profile.Profile) []profile.Overlap {
	var ps []*profile.Profile
	for _, u := range sortedKeys(profiles) {
		if p := profiles[u]; p != nil {
			ps = append(ps, p)
		}
	}
	return profile.Correlate(ps)
}

// Close closes the store, the HTTP cache, and any collaborator that implements io.Closer.
func (s *Service) Close() error {
	var closers []io.Closer
	for _, v := range []any{s.profiles, s.email, s.phone, s.person, s.web, s.correlator, s.store, s.cache} {
		c, ok := v.(io.Closer)
		if !ok || slices.Contains(closers, c) {
			continue
		}
		closers = append(closers, c)
	}
	var errs []error
	for _, c := range closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type nopObserver struct{}

func (nopObserver) LookupDone(string, error, time.Duration) {}
func (nopObserver) SearchDone(int, time.Duration)           {}
