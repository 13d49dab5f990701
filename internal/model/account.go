package model

import "time"

// Account represents a registered user who can manage API keys through the
// account API. Passwords are stored as bcrypt hashes.
type Account struct {
	ID           int64     `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	PasswordHash string    `json:"-" db:"password_hash"` // bcrypt hash, never expose
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
