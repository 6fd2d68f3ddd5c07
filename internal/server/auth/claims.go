package auth

import (
	"time"

	"github.com/dmitrijs2005/nosuite/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the payload sealed inside a token. It implements jwt.Claims so
// the time-based checks are done by jwt.Validator.
type Claims struct {
	Email        string        `cbor:"1,keyasint"`
	Scope        string        `cbor:"2,keyasint,omitempty"`
	Device       models.Device `cbor:"3,keyasint"`
	PasswordHash string        `cbor:"4,keyasint"`
	IssuedAt     int64         `cbor:"5,keyasint"`
	ExpiresAt    int64         `cbor:"6,keyasint"`
}

var _ jwt.Claims = (*Claims)(nil)

func (c *Claims) GetExpirationTime() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.ExpiresAt, 0)), nil
}

func (c *Claims) GetIssuedAt() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.IssuedAt, 0)), nil
}

func (c *Claims) GetNotBefore() (*jwt.NumericDate, error) {
	return nil, nil
}

func (c *Claims) GetIssuer() (string, error) {
	return "", nil
}

func (c *Claims) GetSubject() (string, error) {
	return c.Email, nil
}

func (c *Claims) GetAudience() (jwt.ClaimStrings, error) {
	if c.Scope == "" {
		return nil, nil
	}
	return jwt.ClaimStrings{c.Scope}, nil
}

func (c *Claims) identity() *models.Identity {
	return &models.Identity{
		Email:        c.Email,
		Scope:        c.Scope,
		Device:       c.Device,
		PasswordHash: c.PasswordHash,
		ExpiresAt:    time.Unix(c.ExpiresAt, 0),
	}
}
