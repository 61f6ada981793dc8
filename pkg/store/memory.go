package store

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Store. Each Update works on a copy of the data that
// replaces the committed state only when the callback succeeds.
type Memory struct {
	mu   sync.RWMutex
	data *memData
}

var _ Store = (*Memory)(nil)

type memData struct {
	targets  map[int64]Target
	searches []SearchHistory
	profiles []TargetProfile
	nextID   int64
}

func (d *memData) clone() *memData {
	return &memData{
		targets:  maps.Clone(d.targets),
		searches: slices.Clone(d.searches),
		profiles: slices.Clone(d.profiles),
		nextID:   d.nextID,
	}
}

func (d *memData) id() int64 {
	d.nextID++
	return d.nextID
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: &memData{targets: make(map[int64]Target)}}
}

// Update runs fn against a private copy and commits it if fn returns nil.
func (m *Memory) Update(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	draft := m.data.clone()
	if err := fn(&memTx{data: draft}); err != nil {
		return err
	}
	m.data = draft
	return nil
}

// View runs fn against the committed state. Writes inside fn are discarded.
func (m *Memory) View(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	snapshot := m.data.clone()
	m.mu.RUnlock()
	return fn(&memTx{data: snapshot})
}

// Close is a no-op.
func (*Memory) Close() error { return nil }

type memTx struct {
	data *memData
}

func (tx *memTx) TargetByName(_ context.Context, name string) (*Target, error) {
	for _, t := range tx.data.targets {
		if t.Name == name {
			return &t, nil
		}
	}
	return nil, ErrNotFound
}

func (tx *memTx) CreateTarget(_ context.Context, t *Target) error {
	now := time.Now()
	t.ID = tx.data.id()
	t.CreatedAt, t.UpdatedAt = now, now
	tx.data.targets[t.ID] = *t
	return nil
}

func (tx *memTx) UpdateTarget(_ context.Context, t *Target) error {
	if _, ok := tx.data.targets[t.ID]; !ok {
		return ErrNotFound
	}
	t.UpdatedAt = time.Now()
	tx.data.targets[t.ID] = *t
	return nil
}

func (tx *memTx) AddSearch(_ context.Context, h *SearchHistory) error {
	if _, ok := tx.data.targets[h.TargetID]; !ok {
		return ErrNotFound
	}
	if h.RunID == "" {
		h.RunID = uuid.NewString()
	}
	h.ID = tx.data.id()
	h.CreatedAt = time.Now()
	tx.data.searches = append(tx.data.searches, *h)
	return nil
}

func (tx *memTx) Searches(_ context.Context, targetID int64) ([]SearchHistory, error) {
	var out []SearchHistory
	for _, h := range tx.data.searches {
		if h.TargetID == targetID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (tx *memTx) HasProfile(_ context.Context, targetID int64, username, platform string) (bool, error) {
	return slices.ContainsFunc(tx.data.profiles, func(p TargetProfile) bool {
		return p.TargetID == targetID && p.Username == username && p.Platform == platform
	}), nil
}

func (tx *memTx) AddProfile(_ context.Context, p *TargetProfile) error {
	if _, ok := tx.data.targets[p.TargetID]; !ok {
		return ErrNotFound
	}
	p.ID = tx.data.id()
	p.CreatedAt = time.Now()
	tx.data.profiles = append(tx.data.profiles, *p)
	return nil
}

func (tx *memTx) Profiles(_ context.Context, targetID int64) ([]TargetProfile, error) {
	var out []TargetProfile
	for _, p := range tx.data.profiles {
		if p.TargetID == targetID {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b TargetProfile) int {
		return cmp.Or(cmp.Compare(a.Platform, b.Platform), cmp.Compare(a.Username, b.Username))
	})
	return out, nil
}
