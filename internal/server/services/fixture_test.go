package services

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/nosuite/internal/cryptox"
	"github.com/dmitrijs2005/nosuite/internal/logging"
	"github.com/dmitrijs2005/nosuite/internal/server/auth"
	"github.com/dmitrijs2005/nosuite/internal/server/config"
	"github.com/dmitrijs2005/nosuite/internal/server/credentials"
	"github.com/dmitrijs2005/nosuite/internal/server/paths"
	"github.com/dmitrijs2005/nosuite/internal/server/repositories/allowlist"
	"github.com/dmitrijs2005/nosuite/internal/server/storage"
	"github.com/stretchr/testify/require"
)

const (
	authServer = "nosuite.ngwy.fr"
	notesApp   = "notes.ngwy.fr"
)

type keys struct {
	keyring *cryptox.Keyring
	err     error
}

func (k *keys) Keyring() (*cryptox.Keyring, error) { return k.keyring, k.err }

type fixture struct {
	root    string
	keys    *keys
	users   *credentials.Store
	tokens  *auth.TokenService
	engine  *storage.Engine
	auth    *AuthService
	storage *StorageService
}

func newFixture(t *testing.T, opts ...func(*config.Config)) *fixture {
	t.Helper()

	cfg := &config.Config{}
	cfg.LoadDefaults()
	for _, o := range opts {
		o(cfg)
	}

	resolver, err := paths.NewResolver(t.TempDir())
	require.NoError(t, err)
	root := resolver.UsersRoot()

	c, err := cryptox.NewCipher(nil)
	require.NoError(t, err)
	keyring, err := cryptox.NewKeyring(bytes.Repeat([]byte{5}, cryptox.KeySize))
	require.NoError(t, err)
	k := &keys{keyring: keyring}

	plaintext := cryptox.NewPlaintextAccounts(cfg.PlaintextEmails()...)
	users := credentials.NewStore(resolver, c, plaintext, logging.Nop{})
	tokens := auth.NewTokenService(k, users, c, cfg.AuthorizedDomain, true, logging.Nop{})
	engine := storage.NewEngine(resolver, c, plaintext, 4, logging.Nop{})

	writeList(t, root, allowlist.Testers, "a@x.com", "b@x.com", cfg.DemoAccount)
	writeList(t, root, allowlist.BetaAccess, "a@x.com")
	allow := allowlist.NewFileRepository(root)

	return &fixture{
		root:    root,
		keys:    k,
		users:   users,
		tokens:  tokens,
		engine:  engine,
		auth:    NewAuthService(k, users, tokens, allow, cfg, logging.Nop{}),
		storage: NewStorageService(k, tokens, engine, logging.Nop{}),
	}
}

func writeList(t *testing.T, dir, list string, emails ...string) {
	t.Helper()
	body := `["` + strings.Join(emails, `","`) + `"]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, list+".json"), []byte(body), 0o600))
}

// appToken signs email up and delegates a token for the notes app.
func (f *fixture) appToken(t *testing.T, email string) string {
	t.Helper()
	ctx := context.Background()
	identity, err := f.auth.Authenticate(ctx, email, "pw-"+email, "User", laptop)
	require.NoError(t, err)
	token, err := f.auth.Delegate(ctx, identity, notesApp, laptop)
	require.NoError(t, err)
	return token
}

// joins records Join calls.
type joins struct {
	mu    sync.Mutex
	calls []string
}

func (j *joins) Join(email, app, clientID string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.calls = append(j.calls, email+"|"+app+"|"+clientID)
}

const testHour = time.Hour

func cryptoHash(password string) string {
	return cryptox.HashPassword(password)
}
