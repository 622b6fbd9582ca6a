package auth

import (
	"context"
	"fmt"
	"strings"

	"garantias.org/internal/apperr"
)

// Role is the organisational role of an actor.
type Role string

const (
	RoleRegional Role = "Regional"
	RoleNational Role = "National"
	RoleAdmin    Role = "Admin"
)

// Region is one of the organisation's operating regions.
type Region string

const (
	RegionNorth   Region = "North"
	RegionSouth   Region = "South"
	RegionEast    Region = "East"
	RegionWest    Region = "West"
	RegionCentral Region = "Central"
)

// Regions lists every region in display order.
var Regions = []Region{RegionNorth, RegionSouth, RegionEast, RegionWest, RegionCentral}

var roleAliases = map[string]Role{
	"regional":   RoleRegional,
	"reg_user":   RoleRegional,
	"national":   RoleNational,
	"nac_user":   RoleNational,
	"admin":      RoleAdmin,
	"admin_user": RoleAdmin,
}

var regionAliases = map[string]Region{
	"north":   RegionNorth,
	"norte":   RegionNorth,
	"south":   RegionSouth,
	"sur":     RegionSouth,
	"east":    RegionEast,
	"este":    RegionEast,
	"west":    RegionWest,
	"oeste":   RegionWest,
	"central": RegionCentral,
}

// ParseRole accepts canonical names and the legacy profile labels.
func ParseRole(s string) (Role, error) {
	if r, ok := roleAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return r, nil
	}
	return "", fmt.Errorf("%w: unknown role %q", apperr.ErrValidation, s)
}

// ParseRegion accepts canonical names and the legacy Spanish labels.
func ParseRegion(s string) (Region, error) {
	if r, ok := regionAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return r, nil
	}
	return "", fmt.Errorf("%w: unknown region %q", apperr.ErrValidation, s)
}

func (r Role) Valid() bool {
	switch r {
	case RoleRegional, RoleNational, RoleAdmin:
		return true
	}
	return false
}

func (r Region) Valid() bool {
	switch r {
	case RegionNorth, RegionSouth, RegionEast, RegionWest, RegionCentral:
		return true
	}
	return false
}

// Actor is the authenticated identity a request acts as.
type Actor struct {
	ID     string `json:"id"`
	Role   Role   `json:"role"`
	Region Region `json:"region,omitempty"`
}

// Profile is a directory record describing a user account.
type Profile struct {
	UserID   string `json:"user_id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
	Region   Region `json:"region,omitempty"`
	Active   bool   `json:"is_active"`
}

// Actor projects the profile onto the fields used for authorization.
func (p Profile) Actor() Actor {
	return Actor{ID: p.UserID, Role: p.Role, Region: p.Region}
}

type actorKey struct{}

// ContextWithActor returns ctx carrying actor as the request's identity.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the identity attached by ContextWithActor. An actor with an
// empty id cannot be attributed in the audit log, so it reports false just like a
// missing one and callers treat the request as unauthenticated.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok && a.ID != ""
}
