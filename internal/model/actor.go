package model

// Role is the authorization role of a caller.
type Role string

const (
	RoleUser   Role = "user"
	RoleAdmin  Role = "admin"
	RoleSystem Role = "system"
)

// Actor identifies who performs an operation.
type Actor struct {
	ID    string
	Name  string
	Email string
	Role  Role
}

// IsAdmin reports whether the actor may drive admin-only transitions.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// SystemActor builds the actor used for gateway-driven transitions.
func SystemActor(name string) Actor {
	return Actor{ID: "system", Name: name, Role: RoleSystem}
}
