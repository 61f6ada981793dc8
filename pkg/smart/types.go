package smart

import (
	"context"
	"time"

	"github.com/codeGROOVE-dev/dossier/pkg/correlation"
	"github.com/codeGROOVE-dev/dossier/pkg/emailintel"
	"github.com/codeGROOVE-dev/dossier/pkg/identifier"
	"github.com/codeGROOVE-dev/dossier/pkg/personintel"
	"github.com/codeGROOVE-dev/dossier/pkg/phoneintel"
	"github.com/codeGROOVE-dev/dossier/pkg/profile"
	"github.com/codeGROOVE-dev/dossier/pkg/websearch"
)

// Input is the free-form text and optional hints a search starts from.
type Input = identifier.Input

// IdentifierType names the kind of identifier a candidate was built from.
type IdentifierType string

// Identifier types.
const (
	TypeUsername IdentifierType = "username"
	TypeEmail    IdentifierType = "email"
	TypePhone    IdentifierType = "phone"
	TypeName     IdentifierType = "name"
)

// kindWeb labels web search lookups for logging and metrics.
const kindWeb = "web"

// Candidate is one scored hypothesis about who the target is.
// Reason is only ever appended to.
type Candidate struct {
	Identifier string         `json:"identifier"`
	Type       IdentifierType `json:"identifier_type"`
	Data       any            `json:"data"`
	Confidence float64        `json:"confidence"`
	Reason     string         `json:"reason"`
}

// Lookups holds the per-identifier results gathered from the intelligence sources.
type Lookups struct {
	UsernameProfiles map[string]*profile.Profile    `json:"username_profiles"`
	EmailResults     map[string]*emailintel.Result  `json:"email_results"`
	PhoneResults     map[string]*phoneintel.Result  `json:"phone_results"`
	PersonResults    map[string]*personintel.Result `json:"person_results"`
	WebResults       map[string][]websearch.Result  `json:"web_results"`
}

func newLookups() Lookups {
	return Lookups{
		UsernameProfiles: map[string]*profile.Profile{},
		EmailResults:     map[string]*emailintel.Result{},
		PhoneResults:     map[string]*phoneintel.Result{},
		PersonResults:    map[string]*personintel.Result{},
		WebResults:       map[string][]websearch.Result{},
	}
}

// Result is everything one search produced.
//
//nolint:govet // fieldalignment: intentional layout for readability
type Result struct {
	Input       Input          `json:"input"`
	Identifiers identifier.Set `json:"identifiers"`
	Lookups
	Candidates       []*Candidate          `json:"candidates"`
	Patterns         []correlation.Pattern `json:"patterns"`
	UsernameOverlaps []profile.Overlap     `json:"username_overlaps"`
	StartedAt        time.Time             `json:"started_at"`
	Duration         time.Duration         `json:"duration"`
	TargetID         int64                 `json:"target_id,omitempty"`
}

// ProfileBuilder searches platforms for a username.
type ProfileBuilder interface {
	BuildProfile(ctx context.Context, username string, excludeNSFW bool, timeout time.Duration) (*profile.Profile, error)
}

// EmailInvestigator looks up an email address.
type EmailInvestigator interface {
	Investigate(ctx context.Context, email string, searchProfiles bool) (*emailintel.Result, error)
}

// PhoneInvestigator looks up a phone number.
type PhoneInvestigator interface {
	Investigate(ctx context.Context, phone, region string) (*phoneintel.Result, error)
}

// PersonInvestigator looks up a named person.
type PersonInvestigator interface {
	Investigate(ctx context.Context, q personintel.Query) (*personintel.Result, error)
}

// WebSearcher runs a web search.
type WebSearcher interface {
	Search(ctx context.Context, query string, n int) ([]websearch.Result, error)
}

// Correlator finds related records. *correlation.Analyzer implements it.
type Correlator interface {
	CorrelateProfiles(records []map[string]any) []correlation.Score
}

// PatternDetector is optionally implemented by a Correlator.
type PatternDetector interface {
	DetectPatterns(records []map[string]any) []correlation.Pattern
}

// Observer receives timing and outcome events. internal/metrics implements it.
type Observer interface {
	LookupDone(kind string, err error, d time.Duration)
	SearchDone(candidates int, d time.Duration)
}
