package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// sealedPrefix marks values written by an enabled FieldCipher. Rows stored
// before a key was configured lack it and are returned as plain text.
var sealedPrefix = []byte("wt1:")

var ErrCiphertextTooShort = errors.New("ciphertext too short")

// FieldCipher seals individual column values with AES-256-GCM. With no key
// it passes values through unchanged.
type FieldCipher struct {
	aead cipher.AEAD
}

func NewFieldCipher(key string) (*FieldCipher, error) {
	if key == "" {
		return &FieldCipher{}, nil
	}
	decoded := decodeKey(key)
	if len(decoded) != 32 {
		return nil, fmt.Errorf("DATA_ENCRYPTION_KEY must be 32 bytes after decoding, got %d", len(decoded))
	}
	block, err := aes.NewCipher(decoded)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &FieldCipher{aead: aead}, nil
}

func (c *FieldCipher) Enabled() bool {
	return c != nil && c.aead != nil
}

// Seal returns nil for the empty string so optional columns stay NULL.
func (c *FieldCipher) Seal(value string) ([]byte, error) {
	if value == "" {
		return nil, nil
	}
	if !c.Enabled() {
		return []byte(value), nil
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(sealedPrefix)+len(nonce)+len(value)+c.aead.Overhead())
	out = append(out, sealedPrefix...)
	out = append(out, nonce...)
	return c.aead.Seal(out, nonce, []byte(value), nil), nil
}

func (c *FieldCipher) Open(stored []byte) (string, error) {
	if len(stored) == 0 {
		return "", nil
	}
	if !bytes.HasPrefix(stored, sealedPrefix) {
		return string(stored), nil
	}
	if !c.Enabled() {
		return "", errors.New("sealed value found but no encryption key is configured")
	}
	payload := stored[len(sealedPrefix):]
	if len(payload) < c.aead.NonceSize() {
		return "", ErrCiphertextTooShort
	}
	nonce, data := payload[:c.aead.NonceSize()], payload[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, data, nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// decodeKey accepts hex, padded or raw base64, or the raw bytes.
func decodeKey(raw string) []byte {
	if len(raw) == 64 {
		if decoded, err := hex.DecodeString(raw); err == nil {
			return decoded
		}
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding} {
		if decoded, err := enc.DecodeString(raw); err == nil {
			return decoded
		}
	}
	return []byte(raw)
}
