// Package policy decides whether an actor may mutate a guarantee in a region.
package policy

import (
	"fmt"

	"garantias.org/internal/apperr"
	"garantias.org/internal/auth"
)

// Kind identifies a guarded mutation.
type Kind int

const (
	KindCreateGuarantee Kind = iota + 1
	KindDeactivateGuarantee
)

func (k Kind) String() string {
	switch k {
	case KindCreateGuarantee:
		return "create_guarantee"
	case KindDeactivateGuarantee:
		return "deactivate_guarantee"
	default:
		return "unknown"
	}
}

// Action is a mutation against a target region.
type Action struct {
	Kind   Kind
	Target auth.Region
}

// CreateGuarantee guards creating a guarantee that will belong to region.
func CreateGuarantee(region auth.Region) Action {
	return Action{Kind: KindCreateGuarantee, Target: region}
}

// DeactivateGuarantee guards deactivating a guarantee stored under region.
func DeactivateGuarantee(region auth.Region) Action {
	return Action{Kind: KindDeactivateGuarantee, Target: region}
}

// Decision is the outcome of Decide.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow(reason string) Decision { return Decision{Allowed: true, Reason: reason} }
func deny(reason string) Decision  { return Decision{Reason: reason} }

// Err converts a denial into an authorization error; it returns nil when the action is allowed.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return fmt.Errorf("%w: %s", apperr.ErrForbidden, d.Reason)
}

// Decide applies the region-scoped rule: Admin and National act on any region,
// Regional acts only on its own region. Anything else is denied.
func Decide(actor auth.Actor, action Action) Decision {
	if actor.ID == "" {
		return deny("no authenticated actor")
	}
	switch action.Kind {
	case KindCreateGuarantee, KindDeactivateGuarantee:
	default:
		return deny(fmt.Sprintf("unknown action %d", action.Kind))
	}

	switch actor.Role {
	case auth.RoleAdmin, auth.RoleNational:
		return allow(fmt.Sprintf("role %s may %s in any region", actor.Role, action.Kind))
	case auth.RoleRegional:
		if !actor.Region.Valid() {
			return deny("regional actor has no home region")
		}
		if !action.Target.Valid() {
			return deny(fmt.Sprintf("target region %q is not a known region", action.Target))
		}
		if action.Target != actor.Region {
			return deny(fmt.Sprintf("regional actor of %s may not %s in %s", actor.Region, action.Kind, action.Target))
		}
		return allow(fmt.Sprintf("regional actor of %s acting in own region", actor.Region))
	default:
		return deny(fmt.Sprintf("role %q is not permitted to %s", actor.Role, action.Kind))
	}
}
