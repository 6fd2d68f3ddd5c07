// Package services holds the server use cases. AuthService implements the
// sign-in flow on top of the credential store and the token service.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/nosuite/internal/common"
	"github.com/dmitrijs2005/nosuite/internal/cryptox"
	"github.com/dmitrijs2005/nosuite/internal/logging"
	"github.com/dmitrijs2005/nosuite/internal/server/auth"
	"github.com/dmitrijs2005/nosuite/internal/server/config"
	"github.com/dmitrijs2005/nosuite/internal/server/credentials"
	"github.com/dmitrijs2005/nosuite/internal/server/models"
	"github.com/dmitrijs2005/nosuite/internal/server/repositories/allowlist"
)

// DemoName is written as the display name on every demo reset.
const DemoName = "Compte démo"

const (
	ActionSignIn = "sign in"
	ActionSignUp = "sign up"
)

type AccountInfo struct {
	Email  string `json:"email"`
	Name   string `json:"name"`
	Shared bool   `json:"shared"`
}

type AuthService struct {
	keys   auth.KeySource
	users  *credentials.Store
	tokens *auth.TokenService
	allow  allowlist.Repository
	log    logging.Logger

	authServer      string
	demoAccount     string
	templateAccount string
	identityTTL     time.Duration
	appTTL          time.Duration
	demoIdentityTTL time.Duration
	demoAppTTL      time.Duration
}

func NewAuthService(keys auth.KeySource, users *credentials.Store, tokens *auth.TokenService, allow allowlist.Repository, cfg *config.Config, log logging.Logger) *AuthService {
	return &AuthService{
		keys:            keys,
		users:           users,
		tokens:          tokens,
		allow:           allow,
		log:             log.With("module", "auth-service"),
		authServer:      cfg.AuthServer,
		demoAccount:     cfg.DemoAccount,
		templateAccount: cfg.TemplateAccount,
		identityTTL:     cfg.IdentityTokenTTL,
		appTTL:          cfg.AppTokenTTL,
		demoIdentityTTL: cfg.DemoIdentityTokenTTL,
		demoAppTTL:      cfg.DemoAppTokenTTL,
	}
}

// CheckEmail tells the client whether email should sign in or sign up.
// Unknown emails outside the beta list are refused.
func (s *AuthService) CheckEmail(ctx context.Context, email string) (string, error) {
	if email == "" {
		return "", fmt.Errorf("no email: %w", common.ErrBadRequest)
	}
	if s.users.Exists(email) {
		return ActionSignIn, nil
	}

	ok, err := s.allow.Contains(ctx, allowlist.BetaAccess, email)
	if err != nil {
		return "", fmt.Errorf("beta list: %w", err)
	}
	if !ok {
		return "", common.ErrRefuse
	}
	return ActionSignUp, nil
}

// Authenticate signs email in, or signs it up on first use, registers the
// device and returns an identity token scoped to the auth server.
func (s *AuthService) Authenticate(ctx context.Context, email, password, name string, device models.Device) (string, error) {
	keyring, err := s.keys.Keyring()
	if err != nil {
		return "", err
	}
	if email == "" || password == "" {
		return "", fmt.Errorf("no email or password: %w", common.ErrBadRequest)
	}
	if device.ID == "" {
		return "", fmt.Errorf("no device id: %w", common.ErrBadRequest)
	}

	ok, err := s.allow.Contains(ctx, allowlist.Testers, email)
	if err != nil {
		return "", fmt.Errorf("testers list: %w", err)
	}
	if !ok {
		return "", common.ErrRefuse
	}

	hash := cryptox.HashPassword(password)
	key, err := keyring.UserKey(hash)
	if err != nil {
		return "", fmt.Errorf("derive user key: %w", err)
	}

	if err := s.signInOrUp(ctx, email, name, key); err != nil {
		return "", err
	}

	if err := s.users.AddDevice(email, device, key); err != nil {
		return "", fmt.Errorf("add device: %w", err)
	}

	ttl := s.identityTTL
	if email == s.demoAccount {
		ttl = s.demoIdentityTTL
	}
	return s.tokens.Issue(ctx, email, s.authServer, device, ttl, hash)
}

func (s *AuthService) signInOrUp(ctx context.Context, email, name string, key []byte) error {
	if !s.users.Exists(email) {
		err := s.users.Create(email, name, key)
		if err == nil {
			s.log.Info(ctx, "account created", "email", email)
			return nil
		}
		// lost a race with a concurrent sign-up; fall through to sign-in
		if !errors.Is(err, common.ErrUserExists) {
			return fmt.Errorf("create account: %w", err)
		}
	}

	if !s.users.VerifyPassword(email, key) {
		return common.ErrBadPassword
	}
	return nil
}

// Delegate exchanges an identity token for an app token without scope. For
// the demo account the tree is reset from the template first.
func (s *AuthService) Delegate(ctx context.Context, identityToken, app string, device models.Device) (string, error) {
	id, err := s.tokens.Validate(ctx, identityToken, s.authServer, device.ID)
	if err != nil {
		return "", err
	}

	ttl := s.appTTL
	if id.Email == s.demoAccount {
		ttl = s.demoAppTTL
		if err := s.resetDemo(ctx, id); err != nil {
			return "", err
		}
	}

	s.log.Info(ctx, "app token delegated", "email", id.Email, "app", app)
	return s.tokens.Issue(ctx, id.Email, "", device, ttl, id.PasswordHash)
}

func (s *AuthService) resetDemo(ctx context.Context, id *models.Identity) error {
	if err := s.users.Clone(ctx, s.templateAccount, s.demoAccount); err != nil {
		return fmt.Errorf("reset demo: %w", err)
	}
	if err := s.users.SetName(s.demoAccount, DemoName, nil); err != nil {
		return fmt.Errorf("reset demo: %w", err)
	}
	// the template carries no devices of its own
	if err := s.users.AddDevice(s.demoAccount, id.Device, nil); err != nil {
		return fmt.Errorf("reset demo: %w", err)
	}
	return nil
}

// AccountInfo returns the identity behind token as seen from origin.
func (s *AuthService) AccountInfo(ctx context.Context, token, origin, deviceID string) (*AccountInfo, error) {
	id, err := s.tokens.Validate(ctx, token, origin, deviceID)
	if err != nil {
		return nil, err
	}

	keyring, err := s.keys.Keyring()
	if err != nil {
		return nil, err
	}
	key, err := keyring.UserKey(id.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("derive user key: %w", err)
	}

	name, err := s.users.Name(id.Email, key)
	if err != nil {
		return nil, fmt.Errorf("read name: %w", err)
	}

	return &AccountInfo{
		Email:  id.Email,
		Name:   name,
		Shared: id.Scope != "" && id.Scope != s.authServer,
	}, nil
}
