// Package memory is an in-process implementation of the guarantee store, audit log
// and profile directory, used for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"garantias.org/internal/apperr"
	"garantias.org/internal/audit"
	"garantias.org/internal/auth"
	"garantias.org/internal/guarantee"
)

// Store keeps all state behind one lock. Transactions hold the write lock for their
// whole duration and stage their writes until commit.
type Store struct {
	mu         sync.RWMutex
	guarantees map[string]guarantee.Guarantee
	entries    []audit.Entry // append order
	profiles   map[string]auth.Profile
}

var (
	_ guarantee.Store = (*Store)(nil)
	_ audit.Reader    = (*Store)(nil)
	_ auth.Directory  = (*Store)(nil)
)

// New creates an empty store seeded with profiles.
func New(profiles ...auth.Profile) *Store {
	s := &Store{
		guarantees: make(map[string]guarantee.Guarantee),
		profiles:   make(map[string]auth.Profile),
	}
	for _, p := range profiles {
		s.profiles[p.UserID] = p
	}
	return s
}

// PutProfile inserts or replaces a directory profile.
func (s *Store) PutProfile(p auth.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.UserID] = p
}

// DeleteProfile removes a profile from the directory.
func (s *Store) DeleteProfile(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.profiles, userID)
}

func (s *Store) WithinTx(ctx context.Context, fn func(guarantee.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{store: s, staged: make(map[string]guarantee.Guarantee)}
	if err := fn(t); err != nil {
		return err
	}
	for id, g := range t.staged {
		s.guarantees[id] = g
	}
	s.entries = append(s.entries, t.entries...)
	return nil
}

func (s *Store) List(_ context.Context, status guarantee.Status) ([]guarantee.Guarantee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]guarantee.Guarantee, 0, len(s.guarantees))
	for _, g := range s.guarantees {
		switch {
		case status == guarantee.StatusActive && !g.IsActive:
			continue
		case status == guarantee.StatusInactive && g.IsActive:
			continue
		}
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) Get(_ context.Context, id string) (guarantee.Guarantee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.guarantees[id]
	if !ok {
		return guarantee.Guarantee{}, fmt.Errorf("%w: guarantee %s", apperr.ErrNotFound, id)
	}
	return g, nil
}

// RecentAudit returns up to limit entries, newest first.
func (s *Store) RecentAudit(_ context.Context, limit int) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]audit.Entry, 0, n)
	for i := len(s.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.entries[i])
	}
	return out, nil
}

func (s *Store) Profile(_ context.Context, userID string) (auth.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return auth.Profile{}, fmt.Errorf("%w: profile %s", apperr.ErrNotFound, userID)
	}
	return p, nil
}

func (s *Store) Profiles(_ context.Context, userIDs []string) (map[string]auth.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]auth.Profile, len(userIDs))
	for _, id := range userIDs {
		if p, ok := s.profiles[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type tx struct {
	store   *Store
	staged  map[string]guarantee.Guarantee
	entries []audit.Entry
}

func (t *tx) current(id string) (guarantee.Guarantee, bool) {
	if g, ok := t.staged[id]; ok {
		return g, true
	}
	g, ok := t.store.guarantees[id]
	return g, ok
}

func (t *tx) Insert(_ context.Context, g guarantee.Guarantee) error {
	if _, exists := t.current(g.ID); exists {
		return fmt.Errorf("%w: guarantee %s already exists", apperr.ErrConflict, g.ID)
	}
	t.staged[g.ID] = g
	return nil
}

func (t *tx) Lock(_ context.Context, id string) (guarantee.Guarantee, error) {
	g, ok := t.current(id)
	if !ok {
		return guarantee.Guarantee{}, fmt.Errorf("%w: guarantee %s", apperr.ErrNotFound, id)
	}
	return g, nil
}

func (t *tx) MarkInactive(_ context.Context, next guarantee.Guarantee) error {
	cur, ok := t.current(next.ID)
	if !ok {
		return fmt.Errorf("%w: guarantee %s", apperr.ErrNotFound, next.ID)
	}
	if !cur.IsActive {
		return fmt.Errorf("%w: guarantee %s is already inactive", apperr.ErrConflict, next.ID)
	}
	cur.IsActive = false
	cur.DeactivatedBy = next.DeactivatedBy
	cur.DeactivatedAt = next.DeactivatedAt
	cur.UpdatedAt = next.UpdatedAt
	t.staged[next.ID] = cur
	return nil
}

func (t *tx) AppendAudit(_ context.Context, e audit.Entry) error {
	t.entries = append(t.entries, e)
	return nil
}
