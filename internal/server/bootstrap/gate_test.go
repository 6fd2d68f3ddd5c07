package bootstrap

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/dmitrijs2005/nosuite/internal/common"
	"github.com/dmitrijs2005/nosuite/internal/cryptox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	adminDevice   = "ADMIN-DEVICE-1"
	adminPassword = "correct horse"
)

func newProvisionedGate(t *testing.T) (*Gate, string) {
	t.Helper()
	c, err := cryptox.NewCipher(nil)
	require.NoError(t, err)

	physical, err := common.MakeRandHexString(PhysicalKeySize)
	require.NoError(t, err)

	verification, err := Provision(physical, adminPassword, adminDevice, c)
	require.NoError(t, err)

	g, err := NewGate(adminDevice, verification, c)
	require.NoError(t, err)
	return g, physical
}

func TestGate_UnlockSuccess(t *testing.T) {
	g, physical := newProvisionedGate(t)

	assert.False(t, g.Ready())
	_, err := g.Keyring()
	assert.ErrorIs(t, err, common.ErrServiceNotReady)

	require.NoError(t, g.Unlock(physical, adminPassword, adminDevice))

	assert.True(t, g.Ready())
	k, err := g.Keyring()
	require.NoError(t, err)
	require.NotNil(t, k)
}

func TestGate_UnlockFailuresStayLocked(t *testing.T) {
	g, physical := newProvisionedGate(t)
	other, _ := common.MakeRandHexString(PhysicalKeySize)

	tests := []struct {
		name     string
		physical string
		password string
		device   string
	}{
		{name: "wrong password", physical: physical, password: "nope", device: adminDevice},
		{name: "wrong physical key", physical: other, password: adminPassword, device: adminDevice},
		{name: "wrong device", physical: physical, password: adminPassword, device: "PHONE"},
		{name: "empty device", physical: physical, password: adminPassword, device: ""},
		{name: "key not hex", physical: "zz", password: adminPassword, device: adminDevice},
		{name: "empty key", physical: "", password: adminPassword, device: adminDevice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.Unlock(tt.physical, tt.password, tt.device)
			assert.ErrorIs(t, err, common.ErrForbidden)
			assert.False(t, g.Ready())
		})
	}
}

func TestGate_UnlockIsOneWay(t *testing.T) {
	g, physical := newProvisionedGate(t)
	require.NoError(t, g.Unlock(physical, adminPassword, adminDevice))

	first, _ := g.Keyring()

	err := g.Unlock(physical, adminPassword, adminDevice)
	assert.ErrorIs(t, err, common.ErrAlreadyStarted)

	second, _ := g.Keyring()
	assert.Same(t, first, second)
}

func TestGate_ConcurrentUnlockSucceedsOnce(t *testing.T) {
	g, physical := newProvisionedGate(t)

	var ok atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.Unlock(physical, adminPassword, adminDevice) == nil {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
}

func TestGate_OnReady(t *testing.T) {
	g, physical := newProvisionedGate(t)

	var before, after int
	g.OnReady(func() { before++ })
	assert.Equal(t, 0, before)

	require.NoError(t, g.Unlock(physical, adminPassword, adminDevice))
	assert.Equal(t, 1, before)

	g.OnReady(func() { after++ })
	assert.Equal(t, 1, after)
}

func TestGate_CreatePhysicalKey(t *testing.T) {
	g, _ := newProvisionedGate(t)

	key, err := g.CreatePhysicalKey(adminDevice)
	require.NoError(t, err)
	assert.Len(t, key, PhysicalKeySize*2)

	_, err = g.CreatePhysicalKey("someone-else")
	assert.ErrorIs(t, err, common.ErrForbidden)
}

func TestGate_CreatePhysicalKeyLockedOnly(t *testing.T) {
	g, physical := newProvisionedGate(t)
	require.NoError(t, g.Unlock(physical, adminPassword, adminDevice))

	_, err := g.CreatePhysicalKey(adminDevice)
	assert.ErrorIs(t, err, common.ErrAlreadyStarted)

	_, err = g.CreatePhysicalKey("someone-else")
	assert.ErrorIs(t, err, common.ErrForbidden)
}

func TestNewGate_BadVerification(t *testing.T) {
	c, _ := cryptox.NewCipher(nil)
	_, err := NewGate(adminDevice, "not-hex", c)
	assert.Error(t, err)
}

func TestProvision_Validation(t *testing.T) {
	c, _ := cryptox.NewCipher(nil)

	_, err := Provision("zz", adminPassword, adminDevice, c)
	assert.Error(t, err)

	_, err = Provision("abcd", adminPassword, "", c)
	assert.ErrorIs(t, err, common.ErrBadRequest)
}
