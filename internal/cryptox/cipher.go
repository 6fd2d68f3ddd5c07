package cryptox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
)

// sealedMagic prefixes every ciphertext written by Encrypt. Anything without
// it is treated as the legacy fixed-IV format.
var sealedMagic = []byte("NS2\x00")

var ErrInvalidIV = errors.New("cryptox: legacy IV must be 16 bytes")

// Cipher seals payloads with AES-256-GCM and a random nonce per message:
//
//	"NS2\x00" || nonce(12) || ciphertext+tag
//
// If a legacy IV is configured, payloads written by the old AES-256-CBC
// scheme with a server-wide IV are still readable. They are never written.
type Cipher struct {
	legacyIV []byte
}

// NewCipher returns a Cipher. legacyIV may be nil to disable legacy reads.
func NewCipher(legacyIV []byte) (*Cipher, error) {
	if legacyIV != nil && len(legacyIV) != aes.BlockSize {
		return nil, ErrInvalidIV
	}
	return &Cipher{legacyIV: legacyIV}, nil
}

func (c *Cipher) Encrypt(plaintext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(sealedMagic)+len(nonce)+len(plaintext)+gcm.Overhead())
	out = append(out, sealedMagic...)
	out = append(out, nonce...)

	return gcm.Seal(out, nonce, plaintext, nil), nil
}

// Decrypt returns the plaintext, or nil when the payload is malformed or
// was sealed under another key. It never returns an error: callers decide
// what invalid data means for them.
func (c *Cipher) Decrypt(ciphertext, key []byte) []byte {
	if bytes.HasPrefix(ciphertext, sealedMagic) {
		return c.open(ciphertext[len(sealedMagic):], key)
	}
	if c.legacyIV != nil {
		return c.openLegacy(ciphertext, key)
	}
	return nil
}

func (c *Cipher) open(payload, key []byte) []byte {
	gcm, err := newGCM(key)
	if err != nil {
		return nil
	}
	if len(payload) < gcm.NonceSize()+gcm.Overhead() {
		return nil
	}

	nonce, sealed := payload[:gcm.NonceSize()], payload[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil
	}
	if plaintext == nil {
		// empty message; keep it distinguishable from the failure sentinel
		return []byte{}
	}
	return plaintext
}

func (c *Cipher) openLegacy(ciphertext, key []byte) []byte {
	if len(key) != KeySize || len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, c.legacyIV).CryptBlocks(plaintext, ciphertext)

	// CBC has no tag; a wrong key passes the padding check about once in 256
	// tries. Every legacy payload is a JSON document, so that is the check.
	plaintext = pkcs7Unpad(plaintext)
	if plaintext == nil || !json.Valid(plaintext) {
		return nil
	}
	return plaintext
}

func pkcs7Unpad(b []byte) []byte {
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize || n > len(b) {
		return nil
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil
		}
	}
	return b[:len(b)-n]
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeyLength
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
