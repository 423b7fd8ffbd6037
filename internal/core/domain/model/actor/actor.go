// Package actor identifies who is asking for an order change.
package actor

import (
	"errors"
	"fmt"
	"strings"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/pkg/errs"
)

// Role is the staff or rider role resolved from the caller's credentials.
type Role int

const (
	RoleUnknown Role = iota
	RoleKitchen
	RoleReception
	RoleRider
	RoleAdmin
)

var roleNames = map[Role]string{
	RoleKitchen:   "kitchen",
	RoleReception: "reception",
	RoleRider:     "rider",
	RoleAdmin:     "admin",
}

// ParseRole maps a token claim to a Role.
func ParseRole(s string) (Role, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for role, roleName := range roleNames {
		if roleName == name {
			return role, nil
		}
	}
	return RoleUnknown, errs.NewValueIsInvalidErrorWithCause("role", fmt.Errorf("%q is not a known role", s))
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "unknown"
}

func (r Role) Validate() error {
	if _, ok := roleNames[r]; !ok {
		return errs.NewValueIsInvalidErrorWithCause("role", fmt.Errorf("%d is not a valid role", r))
	}
	return nil
}

// ErrActorIsNotConstructed is returned when an Actor was not built by New.
var ErrActorIsNotConstructed = errors.New("Actor must be created via New constructor")

// Actor is the authenticated caller of a lifecycle operation.
type Actor struct {
	role Role
	id   kernel.UUID
}

// New validates and builds an actor.
func New(role Role, id kernel.UUID) (Actor, error) {
	if err := errors.Join(role.Validate(), id.Validate()); err != nil {
		return Actor{}, err
	}
	return Actor{role: role, id: id}, nil
}

func (a Actor) Role() Role {
	return a.role
}

func (a Actor) ID() kernel.UUID {
	return a.id
}

func (a Actor) Validate() error {
	if a.role == RoleUnknown {
		return ErrActorIsNotConstructed
	}
	return nil
}

func (a Actor) String() string {
	return a.role.String() + ":" + a.id.String()
}
