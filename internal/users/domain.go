package users

import "time"

// Roles an account can hold. Admins manage the catalog and inventory,
// cashiers only ring up sales.
const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
)

// User represents a staff account.
type User struct {
	ID           int64     `json:"user_id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}
