// Package store persists investigation targets, their discovered profiles, and search history.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Target is a person or account under investigation.
//
//nolint:govet // fieldalignment: intentional layout for readability
type Target struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Category     string    `json:"category"`
	Description  string    `json:"description,omitempty"`
	Notes        string    `json:"notes,omitempty"`
	LastSearched time.Time `json:"last_searched"`
	SearchCount  int       `json:"search_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SearchHistory records one search run against a target.
//
//nolint:govet // fieldalignment: intentional layout for readability
type SearchHistory struct {
	ID                int64          `json:"id"`
	RunID             string         `json:"run_id"`
	TargetID          int64          `json:"target_id"`
	Query             string         `json:"query"`
	SearchType        string         `json:"search_type"`
	PlatformsSearched int            `json:"platforms_searched"`
	ResultsFound      int            `json:"results_found"`
	FiltersApplied    map[string]any `json:"filters_applied,omitempty"`
	ResultsSummary    map[string]any `json:"results_summary,omitempty"`
	DurationSeconds   float64        `json:"duration_seconds"`
	CreatedAt         time.Time      `json:"created_at"`
}

// TargetProfile is an account on one platform attributed to a target.
//
//nolint:govet // fieldalignment: intentional layout for readability
type TargetProfile struct {
	ID              int64          `json:"id"`
	TargetID        int64          `json:"target_id"`
	Username        string         `json:"username"`
	Platform        string         `json:"platform"`
	ProfileURL      string         `json:"profile_url,omitempty"`
	ConfidenceScore float64        `json:"confidence_score"`
	RawData         map[string]any `json:"raw_data,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

// Tx is the set of operations available inside a transaction.
type Tx interface {
	// TargetByName returns ErrNotFound when no target has that name.
	TargetByName(ctx context.Context, name string) (*Target, error)
	// CreateTarget inserts t and fills in its ID and timestamps.
	CreateTarget(ctx context.Context, t *Target) error
	UpdateTarget(ctx context.Context, t *Target) error

	AddSearch(ctx context.Context, h *SearchHistory) error
	// Searches returns a target's search history, oldest first.
	Searches(ctx context.Context, targetID int64) ([]SearchHistory, error)

	HasProfile(ctx context.Context, targetID int64, username, platform string) (bool, error)
	AddProfile(ctx context.Context, p *TargetProfile) error
	// Profiles returns a target's profiles ordered by platform then username.
	Profiles(ctx context.Context, targetID int64) ([]TargetProfile, error)
}

// Store runs transactions. An error returned from an Update callback rolls back
// everything the callback wrote.
type Store interface {
	Update(ctx context.Context, fn func(Tx) error) error
	View(ctx context.Context, fn func(Tx) error) error
	Close() error
}

// Open returns the store for driver: "memory" (or empty) or "postgres".
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "", "memory":
		return NewMemory(), nil
	case "postgres":
		return OpenPostgres(ctx, dsn)
	default:
		return nil, errors.New("unknown store driver: " + driver)
	}
}
