package domain

// Actor is the acting identity for an operation: who is doing it and with
// which roles. Client metadata (IP, user agent) travels separately in the
// request context so services that never touch HTTP stay free of it.
//
// The zero Actor is invalid; use SystemActor for unattended processes.
type Actor struct {
	ID    UserID
	Name  string
	Roles RoleSet
}

// IsValid reports whether the actor carries an identity.
func (a Actor) IsValid() bool { return !a.ID.IsNil() || a.System() }

// System reports whether this is the unattended system actor.
func (a Actor) System() bool { return a.Name == systemActorName }

const systemActorName = "system"

// SystemActor is the identity used by scheduled jobs (retention purges,
// approval expiry sweeps). It holds the admin role so time-driven
// transitions pass the same central checks as interactive ones.
func SystemActor() Actor {
	return Actor{Name: systemActorName, Roles: RoleSet{RoleAdmin}}
}
