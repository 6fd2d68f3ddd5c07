package cli

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/nosuite/internal/common"
	"github.com/dmitrijs2005/nosuite/internal/cryptox"
	"github.com/dmitrijs2005/nosuite/internal/server/bootstrap"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// NfcKey prints the physical key URL to write on the NFC tag.
func (a *App) NfcKey(ctx context.Context) error {
	if err := a.requireDevice(); err != nil {
		return err
	}
	u, err := a.admin.NfcKey(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, u)
	return nil
}

// Start prompts for the physical key and the admin password and unlocks the
// server. The password is wiped before returning.
func (a *App) Start(ctx context.Context) error {
	if err := a.requireDevice(); err != nil {
		return err
	}
	raw, err := getSimpleText(a.reader, "Physical key (hex or URL)", a.out)
	if err != nil {
		return err
	}
	key := physicalKey(raw)
	if key == "" {
		return errors.New("no physical key")
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.admin.Start(ctx, key, password); err != nil {
		if errors.Is(err, common.ErrAlreadyStarted) {
			fmt.Fprintln(a.out, "Server already started")
			return nil
		}
		return err
	}
	fmt.Fprintln(a.out, "Server started")
	return nil
}

// Provision computes the admin verification value offline. An empty physical
// key mints a new one.
func (a *App) Provision(ctx context.Context) error {
	if err := a.requireDevice(); err != nil {
		return err
	}
	raw, err := getSimpleText(a.reader, "Physical key (empty to generate)", a.out)
	if err != nil {
		return err
	}
	key := physicalKey(raw)
	if key == "" {
		key, err = common.MakeRandHexString(bootstrap.PhysicalKeySize)
		if err != nil {
			return err
		}
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	cipher, err := cryptox.NewCipher(nil)
	if err != nil {
		return err
	}
	verification, err := bootstrap.Provision(key, string(password), a.config.AdminDeviceID, cipher)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "physical_key_hex: %s\nadmin_verification: %s\n", key, verification)
	return nil
}

func (a *App) requireDevice() error {
	if a.config.AdminDeviceID == "" {
		return errors.New("admin device id is required (-d)")
	}
	return nil
}

// physicalKey accepts either the bare hex key or the URL from nfc-key.
func physicalKey(s string) string {
	s = strings.TrimSpace(s)
	if u, err := url.Parse(s); err == nil && u.Scheme != "" {
		return u.Query().Get("key")
	}
	return s
}
