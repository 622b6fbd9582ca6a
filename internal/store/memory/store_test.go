package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"garantias.org/internal/apperr"
	"garantias.org/internal/audit"
	"garantias.org/internal/auth"
	"garantias.org/internal/guarantee"
)

func sample(id string, at time.Time) guarantee.Guarantee {
	return guarantee.Guarantee{ID: id, Region: auth.RegionNorth, IsActive: true, CreatedAt: at, UpdatedAt: at}
}

func TestRollbackDiscardsStagedWrites(t *testing.T) {
	s := New()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(tx guarantee.Tx) error {
		require.NoError(t, tx.Insert(ctx, sample("g-1", time.Now())))
		require.NoError(t, tx.AppendAudit(ctx, audit.Entry{ID: "a-1"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.Get(ctx, "g-1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	entries, err := s.RecentAudit(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMarkInactiveIsCompareAndSet(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.WithinTx(ctx, func(tx guarantee.Tx) error {
		return tx.Insert(ctx, sample("g-1", time.Now()))
	}))

	at := time.Now()
	next := guarantee.Guarantee{ID: "g-1", DeactivatedBy: "u-1", DeactivatedAt: &at, UpdatedAt: at}
	require.NoError(t, s.WithinTx(ctx, func(tx guarantee.Tx) error { return tx.MarkInactive(ctx, next) }))

	err := s.WithinTx(ctx, func(tx guarantee.Tx) error { return tx.MarkInactive(ctx, next) })
	assert.ErrorIs(t, err, apperr.ErrConflict)

	g, err := s.Get(ctx, "g-1")
	require.NoError(t, err)
	assert.False(t, g.IsActive)
	assert.Equal(t, "u-1", g.DeactivatedBy)
	assert.Equal(t, auth.RegionNorth, g.Region, "region is untouched")
}

func TestListOrderAndStatus(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.WithinTx(ctx, func(tx guarantee.Tx) error {
		for i, id := range []string{"g-1", "g-2", "g-3"} {
			if err := tx.Insert(ctx, sample(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
				return err
			}
		}
		return nil
	}))
	at := base.Add(5 * time.Hour)
	require.NoError(t, s.WithinTx(ctx, func(tx guarantee.Tx) error {
		return tx.MarkInactive(ctx, guarantee.Guarantee{ID: "g-2", DeactivatedAt: &at, UpdatedAt: at})
	}))

	active, err := s.List(ctx, guarantee.StatusActive)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "g-3", active[0].ID)
	assert.Equal(t, "g-1", active[1].ID)

	inactive, err := s.List(ctx, guarantee.StatusInactive)
	require.NoError(t, err)
	require.Len(t, inactive, 1)

	all, err := s.List(ctx, guarantee.StatusAll)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestInsertDuplicateConflicts(t *testing.T) {
	s := New()
	ctx := context.Background()
	err := s.WithinTx(ctx, func(tx guarantee.Tx) error {
		if err := tx.Insert(ctx, sample("g-1", time.Now())); err != nil {
			return err
		}
		return tx.Insert(ctx, sample("g-1", time.Now()))
	})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestRecentAuditNewestFirst(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, id := range []string{"a-1", "a-2", "a-3"} {
		id := id
		require.NoError(t, s.WithinTx(ctx, func(tx guarantee.Tx) error {
			return tx.AppendAudit(ctx, audit.Entry{ID: id})
		}))
	}
	got, err := s.RecentAudit(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a-3", got[0].ID)
	assert.Equal(t, "a-2", got[1].ID)
}

func TestProfiles(t *testing.T) {
	s := New(auth.Profile{UserID: "u-1", FullName: "Ana", Active: true})
	ctx := context.Background()

	p, err := s.Profile(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", p.FullName)

	s.DeleteProfile("u-1")
	_, err = s.Profile(ctx, "u-1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	s.PutProfile(auth.Profile{UserID: "u-2"})
	got, err := s.Profiles(ctx, []string{"u-1", "u-2"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
