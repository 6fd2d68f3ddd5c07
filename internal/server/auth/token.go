// Package auth issues and validates the self-contained bearer tokens.
//
// A token is hex(seal(cbor(Claims), master key)). Nothing is stored server
// side: a token stays valid until it expires or the user's password changes,
// since the sealed password hash must still open the user's verification
// record. Changing the password is the only way to revoke tokens.
package auth

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/nosuite/internal/codec"
	"github.com/dmitrijs2005/nosuite/internal/common"
	"github.com/dmitrijs2005/nosuite/internal/cryptox"
	"github.com/dmitrijs2005/nosuite/internal/logging"
	"github.com/dmitrijs2005/nosuite/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
)

// KeySource hands out the keyring once the service is unlocked.
type KeySource interface {
	Keyring() (*cryptox.Keyring, error)
}

// UserDirectory is the part of the credential store token checks need.
type UserDirectory interface {
	Exists(email string) bool
	VerifyPassword(email string, key []byte) bool
	HasDevice(email, deviceID string, key []byte) (bool, error)
}

type TokenService struct {
	keys             KeySource
	users            UserDirectory
	cipher           *cryptox.Cipher
	authorizedDomain string
	enforceDevice    bool
	log              logging.Logger

	now func() time.Time
}

func NewTokenService(keys KeySource, users UserDirectory, cipher *cryptox.Cipher, authorizedDomain string, enforceDevice bool, log logging.Logger) *TokenService {
	return &TokenService{
		keys:             keys,
		users:            users,
		cipher:           cipher,
		authorizedDomain: strings.ToLower(authorizedDomain),
		enforceDevice:    enforceDevice,
		log:              log.With("module", "auth"),
		now:              time.Now,
	}
}

// Issue mints a token for email valid for ttl. An empty scope makes a
// delegated app token usable from any authorized origin.
func (s *TokenService) Issue(ctx context.Context, email, scope string, device models.Device, ttl time.Duration, passwordHash string) (string, error) {
	master, err := s.masterKey()
	if err != nil {
		return "", err
	}

	now := s.now()
	payload, err := codec.Marshal(&Claims{
		Email:        email,
		Scope:        scope,
		Device:       device,
		PasswordHash: passwordHash,
		IssuedAt:     now.Unix(),
		ExpiresAt:    now.Add(ttl).Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("encode claims: %w", err)
	}

	sealed, err := s.cipher.Encrypt(payload, master)
	if err != nil {
		return "", fmt.Errorf("seal token: %w", err)
	}

	s.log.Debug(ctx, "token issued", "email", email, "scope", scope, "ttl", ttl.String())
	return hex.EncodeToString(sealed), nil
}

// Validate runs every token check in order and stops at the first failure.
// Failures are logged with a reason and returned as ErrInvalidToken, or
// ErrForbidden when the origin is not allowed to use the token.
func (s *TokenService) Validate(ctx context.Context, token, origin, deviceID string) (*models.Identity, error) {
	keyring, err := s.keys.Keyring()
	if err != nil {
		return nil, err
	}
	master, err := keyring.UserKey("")
	if err != nil {
		return nil, err
	}

	claims, ok := s.open(token, master)
	if !ok {
		return nil, s.reject(ctx, "decrypt", "", common.ErrInvalidToken)
	}

	if claims.Scope != "" && claims.Scope != origin {
		return nil, s.reject(ctx, "origin", claims.Email, common.ErrForbidden)
	}

	if !s.authorizedOrigin(origin) {
		return nil, s.reject(ctx, "domain", claims.Email, common.ErrForbidden)
	}

	validator := jwt.NewValidator(jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err := validator.Validate(claims); err != nil {
		reason := "claims"
		if errors.Is(err, jwt.ErrTokenExpired) {
			reason = "expired"
		}
		return nil, s.reject(ctx, reason, claims.Email, common.ErrInvalidToken)
	}

	if !s.users.Exists(claims.Email) {
		return nil, s.reject(ctx, "user", claims.Email, common.ErrInvalidToken)
	}

	userKey, err := keyring.UserKey(claims.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("derive user key: %w", err)
	}
	if !s.users.VerifyPassword(claims.Email, userKey) {
		return nil, s.reject(ctx, "password", claims.Email, common.ErrInvalidToken)
	}

	if s.enforceDevice {
		if claims.Device.ID == "" || claims.Device.ID != deviceID {
			return nil, s.reject(ctx, "device", claims.Email, common.ErrInvalidToken)
		}
		registered, err := s.users.HasDevice(claims.Email, deviceID, userKey)
		if err != nil || !registered {
			return nil, s.reject(ctx, "device", claims.Email, common.ErrInvalidToken)
		}
	}

	return claims.identity(), nil
}

func (s *TokenService) open(token string, master []byte) (*Claims, bool) {
	if token == "" {
		return nil, false
	}
	raw, err := hex.DecodeString(token)
	if err != nil {
		return nil, false
	}
	payload := s.cipher.Decrypt(raw, master)
	if payload == nil {
		return nil, false
	}
	var c Claims
	if err := codec.Unmarshal(payload, &c); err != nil || c.Email == "" {
		return nil, false
	}
	return &c, true
}

// authorizedOrigin accepts the authorized domain itself and its subdomains.
func (s *TokenService) authorizedOrigin(origin string) bool {
	origin = strings.ToLower(origin)
	return origin == s.authorizedDomain || strings.HasSuffix(origin, "."+s.authorizedDomain)
}

func (s *TokenService) reject(ctx context.Context, reason, email string, err error) error {
	s.log.Warn(ctx, "token rejected", "reason", reason, "email", email)
	return err
}

func (s *TokenService) masterKey() ([]byte, error) {
	keyring, err := s.keys.Keyring()
	if err != nil {
		return nil, err
	}
	return keyring.UserKey("")
}
