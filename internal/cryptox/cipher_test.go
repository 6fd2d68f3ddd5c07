package cryptox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"testing"

	"github.com/dmitrijs2005/nosuite/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(b byte) []byte {
	return bytes.Repeat([]byte{b}, KeySize)
}

// legacySeal reproduces the old fixed-IV AES-256-CBC writer.
func legacySeal(t *testing.T, plaintext, key, iv []byte) []byte {
	t.Helper()
	block, err := aes.NewCipher(key)
	require.NoError(t, err)

	pad := aes.BlockSize - len(plaintext)%aes.BlockSize
	padded := append(append([]byte{}, plaintext...), bytes.Repeat([]byte{byte(pad)}, pad)...)

	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return out
}

func TestCipher_RoundTrip(t *testing.T) {
	c, err := NewCipher(nil)
	require.NoError(t, err)

	payloads := [][]byte{
		{},
		[]byte("x"),
		[]byte(`"password"`),
		bytes.Repeat([]byte{0xAB}, 4096),
		common.GenerateRandByteArray(777),
	}

	for _, p := range payloads {
		key := common.GenerateRandByteArray(KeySize)
		ct, err := c.Encrypt(p, key)
		require.NoError(t, err)

		got := c.Decrypt(ct, key)
		require.NotNil(t, got)
		assert.Equal(t, p, got)
	}
}

func TestCipher_NonceIsRandomPerMessage(t *testing.T) {
	c, _ := NewCipher(nil)
	key := testKey(1)

	a, err := c.Encrypt([]byte("same"), key)
	require.NoError(t, err)
	b, err := c.Encrypt([]byte("same"), key)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestCipher_WrongKeyReturnsNil(t *testing.T) {
	c, _ := NewCipher(nil)

	ct, err := c.Encrypt([]byte("secret"), testKey(1))
	require.NoError(t, err)

	assert.Nil(t, c.Decrypt(ct, testKey(2)))
}

func TestCipher_TamperedOrGarbageReturnsNil(t *testing.T) {
	c, _ := NewCipher(nil)
	key := testKey(3)

	ct, err := c.Encrypt([]byte("secret"), key)
	require.NoError(t, err)

	tampered := append([]byte{}, ct...)
	tampered[len(tampered)-1] ^= 0x01

	assert.Nil(t, c.Decrypt(tampered, key))
	assert.Nil(t, c.Decrypt(ct[:len(sealedMagic)+4], key))
	assert.Nil(t, c.Decrypt([]byte("not a ciphertext"), key))
	assert.Nil(t, c.Decrypt(nil, key))
	assert.Nil(t, c.Decrypt(ct, []byte("short")))
}

func TestCipher_Legacy(t *testing.T) {
	iv := bytes.Repeat([]byte{7}, aes.BlockSize)
	key := testKey(4)
	old := legacySeal(t, []byte(`"password"`), key, iv)

	withLegacy, err := NewCipher(iv)
	require.NoError(t, err)
	assert.Equal(t, []byte(`"password"`), withLegacy.Decrypt(old, key))

	withoutLegacy, _ := NewCipher(nil)
	assert.Nil(t, withoutLegacy.Decrypt(old, key))

	// new writes are still read back when legacy support is on
	ct, err := withLegacy.Encrypt([]byte("fresh"), key)
	require.NoError(t, err)
	assert.Equal(t, []byte("fresh"), withLegacy.Decrypt(ct, key))
}

func TestCipher_LegacyRejectsNonJSON(t *testing.T) {
	iv := bytes.Repeat([]byte{7}, aes.BlockSize)
	key := testKey(4)
	c, err := NewCipher(iv)
	require.NoError(t, err)

	// valid padding, plaintext that was never written by the old scheme
	assert.Nil(t, c.Decrypt(legacySeal(t, []byte("not json {"), key, iv), key))

	old := legacySeal(t, []byte(`{"name":"Ann"}`), key, iv)
	for i := 0; i < 2000; i++ {
		wrong := common.GenerateRandByteArray(KeySize)
		if bytes.Equal(wrong, key) {
			continue
		}
		require.Nil(t, c.Decrypt(old, wrong))
	}
	assert.Equal(t, []byte(`{"name":"Ann"}`), c.Decrypt(old, key))
}

func TestNewCipher_RejectsBadIV(t *testing.T) {
	_, err := NewCipher([]byte("short"))
	assert.ErrorIs(t, err, ErrInvalidIV)
}
