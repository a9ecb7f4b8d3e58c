package domain

// Role differentiates end-users from support admins.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// AuthenticatedUser is the caller identity resolved once at the HTTP
// boundary and passed by value through the engine.
type AuthenticatedUser struct {
	ID             string
	Role           Role
	OrganizationID string
	Email          string
	DisplayName    string
}

// IsAdmin reports whether the caller holds the admin role.
func (u AuthenticatedUser) IsAdmin() bool {
	return u.Role == RoleAdmin
}
