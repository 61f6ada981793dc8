package smart

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codeGROOVE-dev/dossier/pkg/emailintel"
	"github.com/codeGROOVE-dev/dossier/pkg/identifier"
	"github.com/codeGROOVE-dev/dossier/pkg/personintel"
	"github.com/codeGROOVE-dev/dossier/pkg/phoneintel"
	"github.com/codeGROOVE-dev/dossier/pkg/profile"
	"github.com/codeGROOVE-dev/dossier/pkg/websearch"
)

// lookup is the outcome of one collaborator call for one identifier.
type lookup[T any] struct {
	key   string
	value T
	err   error
}

// call runs fn for key, turning a panic into that key's error and reporting the
// outcome to the observer.
func call[T any](ctx context.Context, obs Observer, kind, key string, fn func(context.Context) (T, error)) (out lookup[T]) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			out = lookup[T]{key: key, err: fmt.Errorf("panic: %v", r)}
		}
		obs.LookupDone(kind, out.err, time.Since(start))
	}()
	v, err := fn(ctx)
	return lookup[T]{key: key, value: v, err: err}
}

// collect folds lookups into m, logging and dropping the failed ones.
func collect[T any](ctx context.Context, logger *slog.Logger, kind string, results []lookup[T], m map[string]T) {
	for _, r := range results {
		if r.err != nil {
			logger.DebugContext(ctx, "lookup failed", "kind", kind, "identifier", r.key, "error", r.err)
			continue
		}
		m[r.key] = r.value
	}
}

// personQuery splits a full name into first and last, with a middle name only
// when there are exactly three tokens. Single-token names are not looked up.
func personQuery(fullName, state string) (personintel.Query, bool) {
	parts := strings.Fields(fullName)
	if len(parts) < 2 {
		return personintel.Query{}, false
	}
	q := personintel.Query{First: parts[0], Last: parts[len(parts)-1], State: state}
	if len(parts) == 3 {
		q.Middle = parts[1]
	}
	return q, true
}

// fanOut runs fn for every key on its own errgroup bounded by limit and returns the
// lookups in key order.
func fanOut[T any](ctx context.Context, obs Observer, limit int, kind string, keys []string, fn func(context.Context, string) (T, error)) []lookup[T] {
	out := make([]lookup[T], len(keys))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, key := range keys {
		g.Go(func() error {
			out[i] = call(ctx, obs, kind, key, func(ctx context.Context) (T, error) { return fn(ctx, key) })
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // goroutines never return errors
	return out
}

// gather runs the five lookup groups at once, each bounded by the service concurrency
// on its own, and joins them once at the end. A failed lookup leaves its identifier
// out of the result maps and never affects the others. timeout is passed through to
// the profile builder.
func (s *Service) gather(ctx context.Context, ids identifier.Set, region string, timeout time.Duration) Lookups {
	var (
		users   []lookup[*profile.Profile]
		emails  []lookup[*emailintel.Result]
		phones  []lookup[*phoneintel.Result]
		persons []lookup[*personintel.Result]
		web     []lookup[[]websearch.Result]
		groups  errgroup.Group
	)

	if s.profiles != nil {
		groups.Go(func() error {
			users = fanOut(ctx, s.observer, s.concurrency, string(TypeUsername), ids.Usernames,
				func(ctx context.Context, u string) (*profile.Profile, error) {
					return s.profiles.BuildProfile(ctx, u, s.excludeNSFW, timeout)
				})
			return nil
		})
	}

	if s.email != nil {
		groups.Go(func() error {
			emails = fanOut(ctx, s.observer, s.concurrency, string(TypeEmail), ids.Emails,
				func(ctx context.Context, e string) (*emailintel.Result, error) {
					return s.email.Investigate(ctx, e, s.searchEmailProfiles)
				})
			return nil
		})
	}

	if s.phone != nil {
		groups.Go(func() error {
			phones = fanOut(ctx, s.observer, s.concurrency, string(TypePhone), ids.Phones,
				func(ctx context.Context, p string) (*phoneintel.Result, error) {
					return s.phone.Investigate(ctx, p, region)
				})
			return nil
		})
	}

	if s.person != nil {
		queries := make(map[string]personintel.Query, len(ids.Names))
		var names []string
		for _, name := range ids.Names {
			if q, ok := personQuery(name, region); ok {
				queries[name] = q
				names = append(names, name)
			}
		}
		groups.Go(func() error {
			persons = fanOut(ctx, s.observer, s.concurrency, string(TypeName), names,
				func(ctx context.Context, name string) (*personintel.Result, error) {
					return s.person.Investigate(ctx, queries[name])
				})
			return nil
		})
	}

	if s.web != nil {
		groups.Go(func() error {
			web = fanOut(ctx, s.observer, s.concurrency, kindWeb, ids.All(),
				func(ctx context.Context, q string) ([]websearch.Result, error) {
					return s.web.Search(ctx, q, s.webResults)
				})
			return nil
		})
	}

	_ = groups.Wait() //nolint:errcheck // goroutines never return errors

	l := newLookups()
	collect(ctx, s.logger, string(TypeUsername), users, l.UsernameProfiles)
	collect(ctx, s.logger, string(TypeEmail), emails, l.EmailResults)
	collect(ctx, s.logger, string(TypePhone), phones, l.PhoneResults)
	collect(ctx, s.logger, string(TypeName), persons, l.PersonResults)
	collect(ctx, s.logger, kindWeb, web, l.WebResults)
	return l
}
