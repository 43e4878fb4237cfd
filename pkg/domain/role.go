package domain

import dErrors "amparo/pkg/domain-errors"

// Role is a staff role. Roles gate approval transitions and full-PII access.
type Role string

const (
	// RoleAdmin can do everything, including cancel/revoke decisions and
	// reading unmasked PII.
	RoleAdmin Role = "admin"
	// RoleCoordinator reviews and decides approval requests.
	RoleCoordinator Role = "coordinator"
	// RoleSocialWorker creates records and submits approval requests.
	RoleSocialWorker Role = "social_worker"
	// RoleAttendant has read-only, masked access.
	RoleAttendant Role = "attendant"
)

var validRoles = map[Role]bool{
	RoleAdmin:        true,
	RoleCoordinator:  true,
	RoleSocialWorker: true,
	RoleAttendant:    true,
}

// ParseRole constructs a Role from external input (JWT claims, seeds).
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !validRoles[r] {
		return "", dErrors.New(dErrors.CodeBadRequest, "invalid role: "+s)
	}
	return r, nil
}

func (r Role) String() string { return string(r) }

// RoleSet is an actor's set of roles.
type RoleSet []Role

// Has reports whether the set contains the given role.
func (rs RoleSet) Has(role Role) bool {
	for _, r := range rs {
		if r == role {
			return true
		}
	}
	return false
}

// HasAny reports whether the set contains any of the given roles.
func (rs RoleSet) HasAny(roles ...Role) bool {
	for _, r := range roles {
		if rs.Has(r) {
			return true
		}
	}
	return false
}

// CanSubmit reports whether the set holds a submitter-class role.
func (rs RoleSet) CanSubmit() bool {
	return rs.HasAny(RoleSocialWorker, RoleCoordinator, RoleAdmin)
}

// CanReview reports whether the set holds a reviewer-class role
// (coordinator or above).
func (rs RoleSet) CanReview() bool {
	return rs.HasAny(RoleCoordinator, RoleAdmin)
}

// IsAdmin reports whether the set holds the admin-class role.
func (rs RoleSet) IsAdmin() bool {
	return rs.Has(RoleAdmin)
}

// CanAccessFullPII reports whether the set grants unmasked PII access.
// Only admins see plaintext; everyone else gets the masked view.
func (rs RoleSet) CanAccessFullPII() bool {
	return rs.Has(RoleAdmin)
}
