package auth

import "time"

// Account is the authenticated view of a staff user.
type Account struct {
	ID           int64
	Username     string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}
