package models

import "time"

// Identity is what a valid token proves about its bearer.
type Identity struct {
	Email        string
	Scope        string // origin the token was minted for; empty for delegated app tokens
	Device       Device
	PasswordHash string
	ExpiresAt    time.Time
}
