package auth

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"garantias.org/internal/apperr"
)

type stubDirectory struct {
	profiles map[string]Profile
	err      error
}

func (d stubDirectory) Profile(_ context.Context, id string) (Profile, error) {
	if d.err != nil {
		return Profile{}, d.err
	}
	p, ok := d.profiles[id]
	if !ok {
		return Profile{}, fmt.Errorf("%w: profile %s", apperr.ErrNotFound, id)
	}
	return p, nil
}

func (d stubDirectory) Profiles(_ context.Context, ids []string) (map[string]Profile, error) {
	out := make(map[string]Profile)
	for _, id := range ids {
		if p, ok := d.profiles[id]; ok {
			out[id] = p
		}
	}
	return out, d.err
}

func newTestService(t *testing.T, dir Directory, opts ...Option) *Service {
	t.Helper()
	svc, err := NewService(dir, "test-secret", opts...)
	require.NoError(t, err)
	return svc
}

func TestIssueAndAuthenticate(t *testing.T) {
	dir := stubDirectory{profiles: map[string]Profile{
		"u-south": {UserID: "u-south", FullName: "Ana", Role: RoleRegional, Region: RegionSouth, Active: true},
	}}
	svc := newTestService(t, dir, WithIssuer("test-issuer"))

	token, exp, err := svc.IssueToken("u-south")
	require.NoError(t, err)
	assert.True(t, time.Until(exp) > 0)

	claims, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "u-south", claims.Subject)
	assert.Equal(t, "test-issuer", claims.Issuer)
	assert.NotEmpty(t, claims.ID)

	actor, err := svc.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, Actor{ID: "u-south", Role: RoleRegional, Region: RegionSouth}, actor)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	issued := time.Now().Add(-time.Hour)
	issuer := newTestService(t, stubDirectory{}, WithClock(func() time.Time { return issued }))
	token, _, err := issuer.IssueToken("u-1")
	require.NoError(t, err)

	verifier := newTestService(t, stubDirectory{})
	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestVerifyRejectsForeignSecretAndIssuer(t *testing.T) {
	svc := newTestService(t, stubDirectory{})
	other, err := NewService(stubDirectory{}, "other-secret")
	require.NoError(t, err)
	token, _, err := other.IssueToken("u-1")
	require.NoError(t, err)
	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	wrongIssuer := newTestService(t, stubDirectory{}, WithIssuer("someone-else"))
	token, _, err = wrongIssuer.IssueToken("u-1")
	require.NoError(t, err)
	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.Verify("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticateProfileStates(t *testing.T) {
	dir := stubDirectory{profiles: map[string]Profile{
		"u-off": {UserID: "u-off", Role: RoleAdmin, Active: false},
	}}
	svc := newTestService(t, dir)

	off, _, err := svc.IssueToken("u-off")
	require.NoError(t, err)
	_, err = svc.Authenticate(context.Background(), off)
	assert.ErrorIs(t, err, ErrInactiveProfile)

	ghost, _, err := svc.IssueToken("u-ghost")
	require.NoError(t, err)
	_, err = svc.Authenticate(context.Background(), ghost)
	assert.ErrorIs(t, err, ErrInvalidToken)

	broken := newTestService(t, stubDirectory{err: errors.New("db down")})
	_, err = broken.Authenticate(context.Background(), ghost)
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestNewServiceRequiresSecret(t *testing.T) {
	_, err := NewService(stubDirectory{}, "  ")
	assert.Error(t, err)
	_, _, err = newTestService(t, stubDirectory{}).IssueToken(" ")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
