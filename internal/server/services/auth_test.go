package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/nosuite/internal/common"
	"github.com/dmitrijs2005/nosuite/internal/server/config"
	"github.com/dmitrijs2005/nosuite/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var laptop = models.Device{ID: "dev-1", Browser: "firefox", Platform: "linux"}

func TestAuthService_CheckEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	action, err := f.auth.CheckEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, ActionSignUp, action)

	_, err = f.auth.Authenticate(ctx, "a@x.com", "pw1", "Ann", laptop)
	require.NoError(t, err)

	action, err = f.auth.CheckEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, ActionSignIn, action)

	_, err = f.auth.CheckEmail(ctx, "stranger@x.com")
	assert.ErrorIs(t, err, common.ErrRefuse)

	_, err = f.auth.CheckEmail(ctx, "")
	assert.ErrorIs(t, err, common.ErrBadRequest)
}

func TestAuthService_SignUpThenAccountInfo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	token, err := f.auth.Authenticate(ctx, "a@x.com", "pw1", "Ann", laptop)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	info, err := f.auth.AccountInfo(ctx, token, authServer, laptop.ID)
	require.NoError(t, err)
	assert.Equal(t, &AccountInfo{Email: "a@x.com", Name: "Ann"}, info)

	key, err := f.keys.keyring.UserKey(cryptoHash("pw1"))
	require.NoError(t, err)
	devices, err := f.users.Devices("a@x.com", key)
	require.NoError(t, err)
	assert.Equal(t, []models.Device{laptop}, devices)
}

func TestAuthService_SignIn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.auth.Authenticate(ctx, "a@x.com", "pw1", "Ann", laptop)
	require.NoError(t, err)

	phone := models.Device{ID: "dev-2", IsMobile: true}
	token, err := f.auth.Authenticate(ctx, "a@x.com", "pw1", "ignored", phone)
	require.NoError(t, err)

	info, err := f.auth.AccountInfo(ctx, token, authServer, phone.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ann", info.Name)

	_, err = f.auth.Authenticate(ctx, "a@x.com", "wrong", "", laptop)
	assert.ErrorIs(t, err, common.ErrBadPassword)
}

func TestAuthService_AuthenticateRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.auth.Authenticate(ctx, "stranger@x.com", "pw", "S", laptop)
	assert.ErrorIs(t, err, common.ErrRefuse)
	assert.False(t, f.users.Exists("stranger@x.com"))

	_, err = f.auth.Authenticate(ctx, "a@x.com", "", "Ann", laptop)
	assert.ErrorIs(t, err, common.ErrBadRequest)

	_, err = f.auth.Authenticate(ctx, "a@x.com", "pw", "Ann", models.Device{})
	assert.ErrorIs(t, err, common.ErrBadRequest)

	f.keys.err = common.ErrServiceNotReady
	_, err = f.auth.Authenticate(ctx, "a@x.com", "pw", "Ann", laptop)
	assert.ErrorIs(t, err, common.ErrServiceNotReady)
}

func TestAuthService_Delegate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	identity, err := f.auth.Authenticate(ctx, "a@x.com", "pw1", "Ann", laptop)
	require.NoError(t, err)

	// identity tokens only work on the auth server
	_, err = f.auth.AccountInfo(ctx, identity, notesApp, laptop.ID)
	assert.ErrorIs(t, err, common.ErrForbidden)

	appToken, err := f.auth.Delegate(ctx, identity, notesApp, laptop)
	require.NoError(t, err)

	info, err := f.auth.AccountInfo(ctx, appToken, notesApp, laptop.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", info.Email)
	assert.False(t, info.Shared)

	_, err = f.auth.Delegate(ctx, appToken+"00", notesApp, laptop)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestAuthService_SharedScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.auth.Authenticate(ctx, "a@x.com", "pw1", "Ann", laptop)
	require.NoError(t, err)

	token, err := f.tokens.Issue(ctx, "a@x.com", notesApp, laptop, testHour, cryptoHash("pw1"))
	require.NoError(t, err)

	info, err := f.auth.AccountInfo(ctx, token, notesApp, laptop.ID)
	require.NoError(t, err)
	assert.True(t, info.Shared)
}

func TestAuthService_DemoReset(t *testing.T) {
	tests := []struct {
		name string
		opts []func(*config.Config)
	}{
		{name: "defaults"},
		{name: "demo not listed as plaintext", opts: []func(*config.Config){
			func(c *config.Config) { c.PlaintextAccounts = nil },
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testDemoReset(t, newFixture(t, tt.opts...))
		})
	}
}

func testDemoReset(t *testing.T, f *fixture) {
	ctx := context.Background()

	require.NoError(t, f.users.Create("template@nosuite.fr", "Template", nil))
	tplFile := filepath.Join(f.root, "template@nosuite.fr", notesApp, "welcome.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(tplFile), 0o700))
	require.NoError(t, os.WriteFile(tplFile, []byte("bienvenue"), 0o600))

	identity, err := f.auth.Authenticate(ctx, "demo@nosuite.fr", "anything", "Demo", laptop)
	require.NoError(t, err)

	// leftovers from a previous visitor
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "demo@nosuite.fr", "junk"), []byte("x"), 0o600))

	appToken, err := f.auth.Delegate(ctx, identity, notesApp, laptop)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(f.root, "demo@nosuite.fr", "junk"))
	assert.True(t, os.IsNotExist(err))

	info, err := f.auth.AccountInfo(ctx, appToken, notesApp, laptop.ID)
	require.NoError(t, err)
	assert.Equal(t, DemoName, info.Name)

	c, err := f.storage.Authorize(ctx, appToken, notesApp, laptop.ID, "c1")
	require.NoError(t, err)
	got, err := f.storage.Read(ctx, c, "/welcome.txt")
	require.NoError(t, err)
	assert.Equal(t, "bienvenue", string(got))
}
