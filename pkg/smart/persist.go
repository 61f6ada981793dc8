package smart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/dossier/pkg/profile"
	"github.com/codeGROOVE-dev/dossier/pkg/store"
)

// ErrNoStore is returned by Persist when the service has no store.
var ErrNoStore = errors.New("no store configured")

const (
	persistThreshold = 0.5
	topCandidates    = 5
	searchType       = "smart"
	profileSource    = "smart_search"
)

// Target categories.
const (
	CategoryPerson  = "person"
	CategoryAccount = "account"
	CategoryUnknown = "unknown"
)

// TargetName picks the display name a result is filed under: the best candidate, else
// the first name, username, email, or phone, else the start of the input text.
func TargetName(r *Result) string {
	if len(r.Candidates) > 0 {
		return r.Candidates[0].Identifier
	}
	for _, ids := range [][]string{r.Identifiers.Names, r.Identifiers.Usernames, r.Identifiers.Emails, r.Identifiers.Phones} {
		if len(ids) > 0 {
			return ids[0]
		}
	}
	if r.Input.Text != "" {
		return truncate(r.Input.Text, 50)
	}
	return "Unknown Target"
}

// Category is "person" when any name was extracted, "account" when any other
// identifier was, and "unknown" otherwise.
func Category(r *Result) string {
	ids := r.Identifiers
	switch {
	case len(ids.Names) > 0:
		return CategoryPerson
	case len(ids.Emails) > 0 || len(ids.Phones) > 0 || len(ids.Usernames) > 0:
		return CategoryAccount
	default:
		return CategoryUnknown
	}
}

// Persist files r under its target in one transaction. It creates or updates the target,
// records the search, adds a profile row per found platform for username candidates
// at or above 0.5 confidence, and notes strong email and phone candidates on the target.
// It returns the target ID.
func (s *Service) Persist(ctx context.Context, r *Result, started time.Time) (int64, error) {
	if s.store == nil {
		return 0, ErrNoStore
	}

	var targetID int64
	var profilesCreated int
	err := s.store.Update(ctx, func(tx store.Tx) error {
		now := time.Now()
		name := TargetName(r)

		target, err := tx.TargetByName(ctx, name)
		switch {
		case errors.Is(err, store.ErrNotFound):
			target = &store.Target{
				Name:        name,
				Category:    Category(r),
				Description: truncate(r.Input.Text, 500),
				Notes:       "Created from Smart search: " + truncate(r.Input.Text, 200),
			}
			if err := tx.CreateTarget(ctx, target); err != nil {
				return fmt.Errorf("create target: %w", err)
			}
		case err != nil:
			return fmt.Errorf("find target: %w", err)
		}
		target.LastSearched = now
		target.SearchCount++

		if err := tx.AddSearch(ctx, searchHistory(r, target.ID, now.Sub(started))); err != nil {
			return fmt.Errorf("add search: %w", err)
		}

		for _, c := range r.Candidates {
			if c.Confidence < persistThreshold {
				continue
			}
			switch c.Type {
			case TypeUsername:
				p, ok := c.Data.(*profile.Profile)
				if !ok || p == nil {
					continue
				}
				n, err := addProfiles(ctx, tx, target.ID, c, p)
				if err != nil {
					return err
				}
				profilesCreated += n
			case TypeEmail, TypePhone:
				target.Notes = appendNote(target.Notes, c)
			}
		}

		if err := tx.UpdateTarget(ctx, target); err != nil {
			return fmt.Errorf("update target: %w", err)
		}
		targetID = target.ID
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.InfoContext(ctx, "persisted smart search",
		"target_id", targetID,
		"profiles_created", profilesCreated,
		"candidates", len(r.Candidates))
	return targetID, nil
}

func searchHistory(r *Result, targetID int64, d time.Duration) *store.SearchHistory {
	platforms := 0
	for _, u := range r.Identifiers.Usernames {
		if p := r.UsernameProfiles[u]; p != nil {
			platforms += len(p.Platforms)
		}
	}

	top := make([]map[string]any, 0, topCandidates)
	for _, c := range r.Candidates[:min(len(r.Candidates), topCandidates)] {
		top = append(top, map[string]any{
			"identifier": c.Identifier,
			"type":       string(c.Type),
			"confidence": c.Confidence,
		})
	}

	return &store.SearchHistory{
		TargetID:          targetID,
		Query:             r.Input.Text,
		SearchType:        searchType,
		PlatformsSearched: platforms,
		ResultsFound:      len(r.Candidates),
		FiltersApplied: map[string]any{
			"region":                r.Input.Region,
			"identifiers_extracted": r.Identifiers,
		},
		ResultsSummary: map[string]any{
			"top_candidates":   top,
			"total_candidates": len(r.Candidates),
		},
		DurationSeconds: d.Seconds(),
	}
}

func addProfiles(ctx context.Context, tx store.Tx, targetID int64, c *Candidate, p *profile.Profile) (int, error) {
	created := 0
	for _, platform := range p.PlatformNames() {
		m := p.Platforms[platform]
		if !m.Found {
			continue
		}
		exists, err := tx.HasProfile(ctx, targetID, c.Identifier, platform)
		if err != nil {
			return created, fmt.Errorf("check profile: %w", err)
		}
		if exists {
			continue
		}
		err = tx.AddProfile(ctx, &store.TargetProfile{
			TargetID:        targetID,
			Username:        c.Identifier,
			Platform:        platform,
			ProfileURL:      m.URL,
			ConfidenceScore: c.Confidence,
			RawData: map[string]any{
				"found":       m.Found,
				"url":         m.URL,
				"status_code": m.StatusCode,
				"category":    string(m.Category),
			},
			Metadata: map[string]any{
				"source": profileSource,
				"reason": c.Reason,
			},
		})
		if err != nil {
			return created, fmt.Errorf("add profile: %w", err)
		}
		created++
	}
	return created, nil
}

// appendNote adds "<type>:<identifier> (confidence: 0.00)" to notes on its own line
// unless the identifier is already noted.
func appendNote(notes string, c *Candidate) string {
	key := string(c.Type) + ":" + c.Identifier
	if strings.Contains(notes, key) {
		return notes
	}
	line := fmt.Sprintf("%s (confidence: %.2f)", key, c.Confidence)
	if notes == "" {
		return line
	}
	return notes + "\n" + line
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
