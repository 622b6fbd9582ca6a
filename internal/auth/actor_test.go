package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"garantias.org/internal/apperr"
)

func TestParseRoleAliases(t *testing.T) {
	cases := map[string]Role{
		"Regional":   RoleRegional,
		"reg_user":   RoleRegional,
		"nac_user":   RoleNational,
		" ADMIN ":    RoleAdmin,
		"admin_user": RoleAdmin,
	}
	for in, want := range cases {
		got, err := ParseRole(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseRole("superuser")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestParseRegionAliases(t *testing.T) {
	cases := map[string]Region{
		"Norte":   RegionNorth,
		"sur":     RegionSouth,
		"Este":    RegionEast,
		"oeste":   RegionWest,
		"Central": RegionCentral,
		"South":   RegionSouth,
	}
	for in, want := range cases {
		got, err := ParseRegion(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
		assert.True(t, got.Valid())
	}
	_, err := ParseRegion("Atlantis")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.False(t, Region("").Valid())
}

func TestActorContextRoundTrip(t *testing.T) {
	_, ok := ActorFromContext(context.Background())
	assert.False(t, ok)

	ctx := ContextWithActor(context.Background(), Actor{ID: "u-1", Role: RoleNational})
	actor, ok := ActorFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, RoleNational, actor.Role)

	_, ok = ActorFromContext(ContextWithActor(context.Background(), Actor{}))
	assert.False(t, ok, "actor without id is not authenticated")
}
