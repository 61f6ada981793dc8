package personintel

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/codeGROOVE-dev/dossier/pkg/profile"
)

func TestUsernameVariants(t *testing.T) {
	tests := []struct {
		name                string
		first, middle, last string
		want                []string
	}{
		{
			name: "first last", first: "John", last: "Doe",
			want: []string{"johndoe", "john.doe", "john_doe", "jdoe"},
		},
		{
			name: "with middle", first: "John", middle: "Quincy", last: "Doe",
			want: []string{"johndoe", "john.doe", "john_doe", "jdoe", "johnqdoe", "john.q.doe"},
		},
		{name: "missing last", first: "John", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UsernameVariants(tt.first, tt.middle, tt.last)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("UsernameVariants mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

type fakeBuilder struct {
	mu       sync.Mutex
	searched []string
	found    map[string][]string // username -> platforms
}

func (f *fakeBuilder) BuildProfile(_ context.Context, username string, excludeNSFW bool, _ time.Duration) (*profile.Profile, error) {
	f.mu.Lock()
	f.searched = append(f.searched, username)
	f.mu.Unlock()
	if !excludeNSFW {
		return nil, errors.New("variant searches must exclude nsfw platforms")
	}
	if username == "john_doe" {
		return nil, errors.New("boom")
	}
	p := profile.New(username)
	for _, pl := range f.found[username] {
		p.Add(pl, profile.Match{Found: true, URL: "https://" + pl + "/" + username})
	}
	return p, nil
}

type fakeRecords struct {
	rec Records
	err error
}

func (f fakeRecords) Records(context.Context, Query) (Records, error) { return f.rec, f.err }

func TestInvestigate(t *testing.T) {
	b := &fakeBuilder{found: map[string][]string{
		"johndoe":  {"github", "reddit"},
		"john.doe": {"github", "medium"},
		"jdoe":     {"twitter"},
	}}
	c := New(
		WithProfileBuilder(b),
		WithRecordsProvider(fakeRecords{rec: Records{Addresses: []string{"1 Main St"}}}),
	)

	got, err := c.Investigate(context.Background(), Query{First: "John", Last: "Doe", State: "CA"})
	if err != nil {
		t.Fatalf("Investigate: %v", err)
	}

	if diff := cmp.Diff([]string{"johndoe", "john.doe", "john_doe"}, b.searched); diff != "" {
		t.Errorf("searched variants mismatch (-want +got):\n%s", diff)
	}
	wantSocial := map[string]string{
		"github": "https://github/johndoe",
		"reddit": "https://reddit/johndoe",
		"medium": "https://medium/john.doe",
	}
	if diff := cmp.Diff(wantSocial, got.SocialProfiles); diff != "" {
		t.Errorf("social profiles mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"1 Main St"}, got.Addresses); diff != "" {
		t.Errorf("addresses mismatch (-want +got):\n%s", diff)
	}
	if got.PhoneNumbers == nil || len(got.PhoneNumbers) != 0 {
		t.Errorf("PhoneNumbers = %#v, want empty non-nil", got.PhoneNumbers)
	}
	if got.Metadata.FullName != "John Doe" || got.Metadata.SearchState != "CA" {
		t.Errorf("Metadata = %+v", got.Metadata)
	}
}

func TestInvestigateSourcesFailSoft(t *testing.T) {
	c := New(WithRecordsProvider(fakeRecords{err: errors.New("records down")}))
	got, err := c.Investigate(context.Background(), Query{First: "Jane", Middle: "Q", Last: "Roe"})
	if err != nil {
		t.Fatalf("Investigate: %v", err)
	}
	if len(got.Addresses) != 0 || len(got.SocialProfiles) != 0 {
		t.Errorf("result = %+v, want empty lists", got)
	}
	if got.Metadata.FullName != "Jane Q Roe" {
		t.Errorf("FullName = %q", got.Metadata.FullName)
	}
}

func TestInvestigateIncompleteName(t *testing.T) {
	_, err := New().Investigate(context.Background(), Query{First: "Cher"})
	if !errors.Is(err, ErrIncompleteName) {
		t.Errorf("err = %v, want ErrIncompleteName", err)
	}
}
