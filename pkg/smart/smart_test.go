package smart

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/codeGROOVE-dev/dossier/pkg/emailintel"
	"github.com/codeGROOVE-dev/dossier/pkg/identifier"
	"github.com/codeGROOVE-dev/dossier/pkg/personintel"
	"github.com/codeGROOVE-dev/dossier/pkg/phoneintel"
	"github.com/codeGROOVE-dev/dossier/pkg/profile"
	"github.com/codeGROOVE-dev/dossier/pkg/store"
	"github.com/codeGROOVE-dev/dossier/pkg/websearch"
)

type fakeProfiles struct {
	mu       sync.Mutex
	timeouts []time.Duration
}

func (f *fakeProfiles) BuildProfile(_ context.Context, username string, _ bool, timeout time.Duration) (*profile.Profile, error) {
	f.mu.Lock()
	f.timeouts = append(f.timeouts, timeout)
	f.mu.Unlock()
	if username == "ghost" {
		return nil, errors.New("network down")
	}
	return profileOn(username, "github", "twitter", "reddit"), nil
}

type fakeEmail struct{}

func (fakeEmail) Investigate(_ context.Context, email string, searchProfiles bool) (*emailintel.Result, error) {
	if !searchProfiles {
		return nil, errors.New("profile search should be on")
	}
	return &emailintel.Result{
		Email: email, Valid: true, ReputationScore: 90,
		OnlineProfiles: map[string]string{"github": "https://github.com/jdoe"},
	}, nil
}

type panickyPhone struct{}

func (panickyPhone) Investigate(context.Context, string, string) (*phoneintel.Result, error) {
	panic("nil map write")
}

type fakePerson struct {
	mu      sync.Mutex
	queries []personintel.Query
}

func (f *fakePerson) Investigate(_ context.Context, q personintel.Query) (*personintel.Result, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	return &personintel.Result{
		FirstName: q.First, LastName: q.Last,
		SocialProfiles: map[string]string{"github": "https://github.com/jdoe"},
	}, nil
}

type fakeWeb struct{}

func (fakeWeb) Search(_ context.Context, query string, n int) ([]websearch.Result, error) {
	if n != 3 {
		return nil, errors.New("unexpected result count")
	}
	return []websearch.Result{{Title: query, URL: "https://example.com/" + query, Rank: 1}}, nil
}

type countingObserver struct {
	mu       sync.Mutex
	failures map[string]int
	searches int
}

func (o *countingObserver) LookupDone(kind string, err error, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.failures[kind]++
	}
}

func (o *countingObserver) SearchDone(int, time.Duration) {
	o.mu.Lock()
	o.searches++
	o.mu.Unlock()
}

func newTestService(t *testing.T, extra ...Option) (*Service, *fakeProfiles, *fakePerson, *countingObserver) {
	t.Helper()
	profiles := &fakeProfiles{}
	person := &fakePerson{}
	obs := &countingObserver{failures: map[string]int{}}
	opts := append([]Option{
		WithoutDefaults(),
		WithProfileBuilder(profiles),
		WithEmailInvestigator(fakeEmail{}),
		WithPhoneInvestigator(panickyPhone{}),
		WithPersonInvestigator(person),
		WithWebSearcher(fakeWeb{}),
		WithWebResults(3),
		WithObserver(obs),
	}, extra...)
	s, err := New(opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, profiles, person, obs
}

func TestSearch(t *testing.T) {
	s, profiles, person, obs := newTestService(t)
	in := Input{
		Usernames: []string{"@JDoe", "ghost"},
		Emails:    []string{"jdoe@example.com"},
		Phones:    []string{"(415) 555-1234"},
		Names:     []string{"John Q Doe", "Cher"},
		Region:    "CA",
	}

	res := s.Search(context.Background(), in, WithTimeout(5*time.Second))

	if diff := cmp.Diff([]string{"jdoe"}, sortedKeys(res.UsernameProfiles)); diff != "" {
		t.Errorf("username profiles mismatch (-want +got):\n%s", diff)
	}
	if len(res.PhoneResults) != 0 {
		t.Errorf("PhoneResults = %v, want empty after panic", res.PhoneResults)
	}
	if diff := cmp.Diff([]string{"John Q Doe"}, sortedKeys(res.PersonResults)); diff != "" {
		t.Errorf("person results mismatch (-want +got):\n%s", diff)
	}
	wantPerson := []personintel.Query{{First: "John", Middle: "Q", Last: "Doe", State: "CA"}}
	if diff := cmp.Diff(wantPerson, person.queries); diff != "" {
		t.Errorf("person queries mismatch (-want +got):\n%s", diff)
	}
	wantWeb := []string{"4155551234", "Cher", "John Q Doe", "ghost", "jdoe", "jdoe@example.com"}
	if diff := cmp.Diff(wantWeb, sortedKeys(res.WebResults)); diff != "" {
		t.Errorf("web result keys mismatch (-want +got):\n%s", diff)
	}
	for _, d := range profiles.timeouts {
		if d != 5*time.Second {
			t.Errorf("profile builder got timeout %v, want 5s", d)
		}
	}

	var got []string
	for i, c := range res.Candidates {
		got = append(got, string(c.Type)+":"+c.Identifier)
		if c.Confidence < 0 || c.Confidence > 1 {
			t.Errorf("candidate %s confidence %v out of range", c.Identifier, c.Confidence)
		}
		if i > 0 && res.Candidates[i-1].Confidence < c.Confidence {
			t.Errorf("candidates not sorted at %d", i)
		}
	}
	want := []string{"email:jdoe@example.com", "username:jdoe", "name:John Q Doe"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("candidates mismatch (-want +got):\n%s", diff)
	}

	if obs.failures[string(TypeUsername)] != 1 || obs.failures[string(TypePhone)] != 1 {
		t.Errorf("observer failures = %v, want one username and one phone", obs.failures)
	}
	if obs.searches != 1 {
		t.Errorf("observer saw %d searches, want 1", obs.searches)
	}
	if res.TargetID != 0 {
		t.Errorf("TargetID = %d without persistence", res.TargetID)
	}
}

func TestSearchExtractsFromText(t *testing.T) {
	s, _, _, _ := newTestService(t)
	res := s.Search(context.Background(), Input{Text: "Contact me at john@example.com or call 415-555-1234, I'm John Doe"})

	if diff := cmp.Diff([]string{"john@example.com"}, res.Identifiers.Emails); diff != "" {
		t.Errorf("emails mismatch (-want +got):\n%s", diff)
	}
	if !slices.Contains(res.Identifiers.Phones, "4155551234") {
		t.Errorf("phones = %v, want 4155551234", res.Identifiers.Phones)
	}
	if !slices.Contains(res.Identifiers.Names, "John Doe") {
		t.Errorf("names = %v, want John Doe", res.Identifiers.Names)
	}
	if _, ok := res.EmailResults["john@example.com"]; !ok {
		t.Error("email was not investigated")
	}
}

func TestSearchEmptyInput(t *testing.T) {
	s, _, _, _ := newTestService(t)
	res := s.Search(context.Background(), Input{})

	if res == nil {
		t.Fatal("Search returned nil")
	}
	if !res.Identifiers.Empty() {
		t.Errorf("Identifiers = %+v, want empty", res.Identifiers)
	}
	if len(res.UsernameProfiles)+len(res.EmailResults)+len(res.PhoneResults)+len(res.PersonResults)+len(res.WebResults) != 0 {
		t.Errorf("result maps not empty: %+v", res.Lookups)
	}
	if res.Candidates == nil || len(res.Candidates) != 0 {
		t.Errorf("Candidates = %#v, want empty non-nil", res.Candidates)
	}
}

// gatedProfiles blocks every username lookup until the email lookup has started.
type gatedProfiles struct {
	emailStarted chan struct{}
	mu           sync.Mutex
	stalled      int
}

func (g *gatedProfiles) BuildProfile(ctx context.Context, username string, _ bool, _ time.Duration) (*profile.Profile, error) {
	select {
	case <-g.emailStarted:
		return profileOn(username, "github"), nil
	case <-time.After(2 * time.Second):
		g.mu.Lock()
		g.stalled++
		g.mu.Unlock()
		return nil, errors.New("email lookup never started")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type startSignalEmail struct {
	once    sync.Once
	started chan struct{}
}

func (e *startSignalEmail) Investigate(_ context.Context, email string, _ bool) (*emailintel.Result, error) {
	e.once.Do(func() { close(e.started) })
	return &emailintel.Result{Email: email, Valid: true}, nil
}

func TestSearchGroupsRunConcurrently(t *testing.T) {
	started := make(chan struct{})
	profiles := &gatedProfiles{emailStarted: started}
	s, err := New(
		WithoutDefaults(),
		WithConcurrency(2),
		WithProfileBuilder(profiles),
		WithEmailInvestigator(&startSignalEmail{started: started}),
	)
	if err != nil {
		t.Fatal(err)
	}

	res := s.Search(context.Background(), Input{
		Usernames: []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot"},
		Emails:    []string{"jdoe@example.com"},
	})

	if profiles.stalled != 0 {
		t.Errorf("%d username lookups waited on the email group", profiles.stalled)
	}
	if len(res.UsernameProfiles) != 6 {
		t.Errorf("got %d username profiles, want 6", len(res.UsernameProfiles))
	}
	if _, ok := res.EmailResults["jdoe@example.com"]; !ok {
		t.Error("email was not investigated")
	}
}

func TestSearchTotalOutage(t *testing.T) {
	s, err := New(WithoutDefaults(), WithPhoneInvestigator(panickyPhone{}))
	if err != nil {
		t.Fatal(err)
	}
	res := s.Search(context.Background(), Input{Phones: []string{"+1 415 555 1234"}})
	if diff := cmp.Diff([]string{"14155551234"}, res.Identifiers.Phones); diff != "" {
		t.Errorf("phones mismatch (-want +got):\n%s", diff)
	}
	if len(res.Candidates) != 0 || len(res.PhoneResults) != 0 {
		t.Errorf("result = %+v, want no candidates", res)
	}
}

func TestSearchPersist(t *testing.T) {
	st := store.NewMemory()
	s, _, _, _ := newTestService(t, WithStore(st))
	res := s.Search(context.Background(), Input{Text: "looking for jdoe@example.com"}, WithPersist())
	if res.TargetID == 0 {
		t.Fatal("TargetID not set after persistence")
	}

	err := st.View(context.Background(), func(tx store.Tx) error {
		tg, err := tx.TargetByName(context.Background(), "jdoe@example.com")
		if err != nil {
			return err
		}
		if tg.ID != res.TargetID {
			t.Errorf("target id %d, result says %d", tg.ID, res.TargetID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
}

func TestNewRejectsBadOptions(t *testing.T) {
	if _, err := New(WithoutDefaults(), WithConcurrency(0)); err == nil {
		t.Error("New accepted zero concurrency")
	}
	if _, err := New(WithoutDefaults(), WithWebResults(-1)); err == nil {
		t.Error("New accepted negative web results")
	}
}

type closer struct{ closed int }

func (c *closer) Close() error { c.closed++; return nil }

type closingWeb struct {
	fakeWeb
	*closer
}

func TestClose(t *testing.T) {
	c := &closer{}
	s, err := New(WithoutDefaults(), WithWebSearcher(closingWeb{closer: c}))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if c.closed != 1 {
		t.Errorf("closed %d times, want 1", c.closed)
	}
}

func TestPersonQuery(t *testing.T) {
	tests := []struct {
		name   string
		want   personintel.Query
		wantOK bool
	}{
		{name: "John Doe", want: personintel.Query{First: "John", Last: "Doe", State: "TX"}, wantOK: true},
		{name: "John Quincy Doe", want: personintel.Query{First: "John", Middle: "Quincy", Last: "Doe", State: "TX"}, wantOK: true},
		{name: "Mary Ann Van Doe", want: personintel.Query{First: "Mary", Last: "Doe", State: "TX"}, wantOK: true},
		{name: "Cher", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := personQuery(tt.name, "TX")
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("query mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTargetNameAndCategory(t *testing.T) {
	tests := []struct {
		name         string
		result       *Result
		wantName     string
		wantCategory string
	}{
		{
			name: "best candidate",
			result: &Result{
				Identifiers: identifier.Set{Names: []string{"John Doe"}},
				Candidates:  []*Candidate{{Identifier: "jdoe"}},
			},
			wantName:     "jdoe",
			wantCategory: CategoryPerson,
		},
		{
			name:         "first username when no candidates",
			result:       &Result{Identifiers: identifier.Set{Usernames: []string{"jdoe"}, Emails: []string{"j@example.com"}}},
			wantName:     "jdoe",
			wantCategory: CategoryAccount,
		},
		{
			name:         "truncated text",
			result:       &Result{Input: Input{Text: "an extremely long description of somebody we know nothing else about"}},
			wantName:     "an extremely long description of somebody we know",
			wantCategory: CategoryUnknown,
		},
		{
			name:         "nothing at all",
			result:       &Result{},
			wantName:     "Unknown Target",
			wantCategory: CategoryUnknown,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TargetName(tt.result); got != tt.wantName {
				t.Errorf("TargetName = %q, want %q", got, tt.wantName)
			}
			if got := Category(tt.result); got != tt.wantCategory {
				t.Errorf("Category = %q, want %q", got, tt.wantCategory)
			}
		})
	}
}
