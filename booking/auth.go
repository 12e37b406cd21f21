/*
auth.go - Authorization collaborator boundary

PURPOSE:
  The core never authenticates. It receives already-validated actor
  identities and asks an injected Authorizer whether a claimant may book
  a resource, trusting the answer. Role handling is polymorphic: one
  policy implementation per role, dispatched through a role directory,
  instead of role-string branching inline.
*/
package booking

import (
	"context"
	"fmt"
)

// Authorizer decides whether an actor may book against a resource.
type Authorizer interface {
	IsEligibleToBook(ctx context.Context, claimant ActorID, res Resource) (bool, error)
}

// Role is an actor's role in the surrounding platform.
type Role string

const (
	RoleVolunteer Role = "volunteer"
	RoleOrganizer Role = "organizer"
	RoleAdmin     Role = "admin"
)

// RoleDirectory is the identity collaborator's view of actor roles.
type RoleDirectory interface {
	RoleOf(ctx context.Context, actor ActorID) (Role, error)
}

// StaticDirectory is a fixed actor-to-role map (tests, dev seeds).
type StaticDirectory map[ActorID]Role

func (d StaticDirectory) RoleOf(_ context.Context, actor ActorID) (Role, error) {
	role, ok := d[actor]
	if !ok {
		return "", fmt.Errorf("actor %s: %w", actor, ErrNotFound)
	}
	return role, nil
}

// FixedRole assigns every actor the same role. Deployments without an
// identity collaborator run everyone as a volunteer.
type FixedRole Role

func (r FixedRole) RoleOf(context.Context, ActorID) (Role, error) {
	return Role(r), nil
}

// RoleAuthorizer dispatches to one policy per role. Roles without a
// registered policy are ineligible.
type RoleAuthorizer struct {
	Directory RoleDirectory
	Policies  map[Role]Authorizer
}

// NewRoleAuthorizer wires the default per-role policies: volunteers may
// book any resource they don't own, admins may book anything, organizers
// may not book at all.
func NewRoleAuthorizer(dir RoleDirectory) *RoleAuthorizer {
	return &RoleAuthorizer{
		Directory: dir,
		Policies: map[Role]Authorizer{
			RoleVolunteer: VolunteerPolicy{},
			RoleAdmin:     AllowAll{},
		},
	}
}

func (a *RoleAuthorizer) IsEligibleToBook(ctx context.Context, claimant ActorID, res Resource) (bool, error) {
	role, err := a.Directory.RoleOf(ctx, claimant)
	if err != nil {
		return false, err
	}
	policy, ok := a.Policies[role]
	if !ok {
		return false, nil
	}
	return policy.IsEligibleToBook(ctx, claimant, res)
}

// VolunteerPolicy lets a volunteer claim slots on resources owned by
// someone else.
type VolunteerPolicy struct{}

func (VolunteerPolicy) IsEligibleToBook(_ context.Context, claimant ActorID, res Resource) (bool, error) {
	return res.OwnerID != claimant, nil
}

// AllowAll accepts every claimant. Tests and admin role.
type AllowAll struct{}

func (AllowAll) IsEligibleToBook(context.Context, ActorID, Resource) (bool, error) {
	return true, nil
}
