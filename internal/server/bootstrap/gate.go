// Package bootstrap holds the process-wide unlock state. The server starts
// Locked; an operator presents the physical key and admin password once, the
// master key is derived and verified, and the gate flips to Unlocked for the
// rest of the process lifetime. Nothing is persisted.
package bootstrap

import (
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dmitrijs2005/nosuite/internal/common"
	"github.com/dmitrijs2005/nosuite/internal/cryptox"
)

// PhysicalKeySize is the size in bytes of a freshly minted physical key.
const PhysicalKeySize = 32

type Gate struct {
	adminDeviceID string
	verification  []byte
	cipher        *cryptox.Cipher

	mu      sync.Mutex // serializes Unlock
	keyring atomic.Pointer[cryptox.Keyring]
	onReady []func()
}

// NewGate returns a locked gate. verificationHex is the ciphertext produced
// by Provision for the same admin device id.
func NewGate(adminDeviceID, verificationHex string, cipher *cryptox.Cipher) (*Gate, error) {
	verification, err := hex.DecodeString(verificationHex)
	if err != nil {
		return nil, fmt.Errorf("admin verification: %w", err)
	}
	return &Gate{adminDeviceID: adminDeviceID, verification: verification, cipher: cipher}, nil
}

// OnReady registers fn to run once, right after a successful Unlock.
// Callbacks registered after unlock run immediately.
func (g *Gate) OnReady(fn func()) {
	g.mu.Lock()
	if g.keyring.Load() == nil {
		g.onReady = append(g.onReady, fn)
		g.mu.Unlock()
		return
	}
	g.mu.Unlock()
	fn()
}

// Ready reports whether the master key is available.
func (g *Gate) Ready() bool {
	return g.keyring.Load() != nil
}

// Keyring returns the unlocked keyring or ErrServiceNotReady.
func (g *Gate) Keyring() (*cryptox.Keyring, error) {
	k := g.keyring.Load()
	if k == nil {
		return nil, common.ErrServiceNotReady
	}
	return k, nil
}

// CreatePhysicalKey mints a random physical key, hex encoded. Only the admin
// device may ask for one, and only while the gate is locked.
func (g *Gate) CreatePhysicalKey(adminDeviceID string) (string, error) {
	if !g.isAdminDevice(adminDeviceID) {
		return "", common.ErrForbidden
	}
	if g.Ready() {
		return "", common.ErrAlreadyStarted
	}
	return common.MakeRandHexString(PhysicalKeySize)
}

// Unlock derives the master key from the physical key and admin password and
// checks it against the provisioned verification blob. It succeeds at most
// once per process; later calls get ErrAlreadyStarted whatever they carry.
func (g *Gate) Unlock(physicalKeyHex, adminPassword, adminDeviceID string) error {
	if !g.isAdminDevice(adminDeviceID) {
		return common.ErrForbidden
	}

	physicalKey, err := hex.DecodeString(physicalKeyHex)
	if err != nil || len(physicalKey) == 0 {
		return common.ErrForbidden
	}
	defer common.WipeByteArray(physicalKey)

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.keyring.Load() != nil {
		return common.ErrAlreadyStarted
	}

	master := cryptox.DeriveMasterKey(physicalKey, cryptox.HashPassword(adminPassword))
	defer common.WipeByteArray(master)

	plain := g.cipher.Decrypt(g.verification, master)
	if plain == nil || subtle.ConstantTimeCompare(plain, []byte(g.adminDeviceID)) != 1 {
		return common.ErrForbidden
	}

	k, err := cryptox.NewKeyring(master)
	if err != nil {
		return fmt.Errorf("keyring: %w", err)
	}
	g.keyring.Store(k)

	for _, fn := range g.onReady {
		fn()
	}
	g.onReady = nil

	return nil
}

func (g *Gate) isAdminDevice(id string) bool {
	if g.adminDeviceID == "" || id == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(id), []byte(g.adminDeviceID)) == 1
}

// Provision produces the hex verification blob an operator stores in the
// server config: the admin device id sealed under the master key derived
// from physicalKeyHex and adminPassword.
func Provision(physicalKeyHex, adminPassword, adminDeviceID string, cipher *cryptox.Cipher) (string, error) {
	physicalKey, err := hex.DecodeString(physicalKeyHex)
	if err != nil {
		return "", fmt.Errorf("physical key: %w", err)
	}
	if len(physicalKey) == 0 || adminDeviceID == "" {
		return "", common.ErrBadRequest
	}

	master := cryptox.DeriveMasterKey(physicalKey, cryptox.HashPassword(adminPassword))
	defer common.WipeByteArray(master)

	sealed, err := cipher.Encrypt([]byte(adminDeviceID), master)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sealed), nil
}
