// Package profile defines the username profile document: which platforms a username was found on.
package profile

import (
	"errors"
	"slices"
	"strings"
	"time"
)

// Common errors returned by platform checks.
var (
	ErrAuthRequired    = errors.New("authentication required")
	ErrNoCookies       = errors.New("no cookies available")
	ErrProfileNotFound = errors.New("profile not found")
	ErrRateLimited     = errors.New("rate limited")
)

// Match is the outcome of checking one platform for a username.
type Match struct {
	Found         bool          `json:"found"`
	URL           string        `json:"url"`
	StatusCode    int           `json:"status_code,omitempty"`
	ResponseTime  time.Duration `json:"response_time,omitempty"`
	Authenticated bool          `json:"authenticated,omitempty"` // session cookies were sent
	Category      Category      `json:"category,omitempty"`
}

// Profile is the result of searching one username across platforms.
// Platforms holds only the platforms where the username was found.
//
//nolint:govet // fieldalignment: intentional layout for readability
type Profile struct {
	Username          string           `json:"username"`
	FoundOnPlatforms  int              `json:"found_on_platforms"`
	Platforms         map[string]Match `json:"platforms"`
	PlatformsSearched int              `json:"platforms_searched"`
	CheckedAt         time.Time        `json:"checked_at"`
}

// New returns an empty profile for username.
func New(username string) *Profile {
	return &Profile{
		Username:  username,
		Platforms: make(map[string]Match),
		CheckedAt: time.Now(),
	}
}

// Add records a found platform. Matches with Found unset are ignored.
func (p *Profile) Add(platform string, m Match) {
	if !m.Found {
		return
	}
	if p.Platforms == nil {
		p.Platforms = make(map[string]Match)
	}
	p.Platforms[platform] = m
	p.FoundOnPlatforms = len(p.Platforms)
}

// PlatformNames returns the found platform names, sorted.
func (p *Profile) PlatformNames() []string {
	names := make([]string, 0, len(p.Platforms))
	for name := range p.Platforms {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// HasPlatform reports whether the username was found on the named platform (case-insensitive).
func (p *Profile) HasPlatform(name string) bool {
	for n := range p.Platforms {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}

// Overlap is a pair of usernames found on many of the same platforms.
type Overlap struct {
	Username1       string   `json:"username1"`
	Username2       string   `json:"username2"`
	SharedPlatforms []string `json:"shared_platforms"`
	SamePerson      bool     `json:"potential_same_person"`
}

// minSharedPlatforms is how many platforms two usernames must share to flag them as one person.
const minSharedPlatforms = 3

// Correlate compares every pair of profiles and reports those sharing at least one platform.
func Correlate(profiles []*Profile) []Overlap {
	var out []Overlap
	for i, a := range profiles {
		for _, b := range profiles[i+1:] {
			var shared []string
			for _, name := range a.PlatformNames() {
				if _, ok := b.Platforms[name]; ok {
					shared = append(shared, name)
				}
			}
			if len(shared) == 0 {
				continue
			}
			out = append(out, Overlap{
				Username1:       a.Username,
				Username2:       b.Username,
				SharedPlatforms: shared,
				SamePerson:      len(shared) >= minSharedPlatforms,
			})
		}
	}
	return out
}
