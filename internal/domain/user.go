package domain

import "time"

// User represents an end user that can authenticate within a tenant.
type User struct {
	ID           int64
	TenantID     int64
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Department   string
	Title        string
	Status       UserStatus
	Roles        []Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserStatus describes whether a user may authenticate.
type UserStatus string

const (
	UserActive   UserStatus = "active"
	UserInactive UserStatus = "inactive"
)

// RoleKeys returns the role keys assigned to the user, for embedding in
// token claims.
func (u User) RoleKeys() []string {
	keys := make([]string, 0, len(u.Roles))
	for _, role := range u.Roles {
		keys = append(keys, string(role.Key))
	}
	return keys
}

// Principal is the authenticated identity derived from a validated access
// token resolved against the tenant-scoped user store.
type Principal struct {
	UserID   int64
	TenantID int64
	Roles    []string
	Status   UserStatus
}
