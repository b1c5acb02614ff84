package types

import "time"

// Role is the authorization level assigned to a user.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
	RoleGuest Role = "guest"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleUser, RoleGuest:
		return true
	}
	return false
}

// User represents an account record in the system.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Username is the unique handle chosen for the user.
	Username string `json:"username" db:"username"`

	// Email is the user's email address, unique across all users.
	Email string `json:"email" db:"email"`

	// FirstName and LastName are the user's name fields.
	FirstName string `json:"first_name" db:"first_name"`
	LastName  string `json:"last_name" db:"last_name"`

	// Role indicates the user's authorization level.
	Role Role `json:"role" db:"role"`

	// Active marks whether the account is currently enabled.
	Active bool `json:"active" db:"active"`

	// CreatedAt is set once when the record is inserted.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is refreshed on every successful mutation.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// UserUpdate is a partial change set for a user. Nil fields are left
// untouched by an update.
type UserUpdate struct {
	Username  *string `json:"username"`
	Email     *string `json:"email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Role      *Role   `json:"role"`
	Active    *bool   `json:"active"`
}

// UserFilter narrows a listing. Predicates are ANDed; zero values mean
// "no filter".
type UserFilter struct {
	Active *bool
	Role   Role
}
