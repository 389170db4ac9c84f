// Package pii provides transparent field-level encryption for passenger
// data at rest. The codec is applied at the repository boundary only, so
// business logic never sees ciphertext and no call site can forget it.
package pii

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
)

const (
	nonceSize = 16 // 128-bit random nonce per call
	tagSize   = 16 // 128-bit auth tag
)

// Codec encrypts and decrypts individual field values with AES-256-GCM.
// Tokens have the form nonce:tag:ciphertext, all hex, so already-encrypted
// values can be detected cheaply and are never double-encrypted.
type Codec struct {
	aead   cipher.AEAD
	logger *zap.Logger
}

// New builds a Codec from a hex-encoded 32-byte key.
func New(keyHex string, logger *zap.Logger) (*Codec, error) {
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("pii: key is not valid hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("pii: key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("pii: failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, fmt.Errorf("pii: failed to create GCM: %w", err)
	}
	return &Codec{aead: aead, logger: logger}, nil
}

// Encrypt returns the token for a plaintext value. Values that already
// look like tokens are returned unchanged so that re-saving a record read
// from storage cannot stack a second layer of encryption.
func (c *Codec) Encrypt(plaintext string) (string, error) {
	if plaintext == "" || c.IsEncrypted(plaintext) {
		return plaintext, nil
	}
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("pii: failed to generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nil, nonce, []byte(plaintext), nil)
	// Seal appends the tag after the ciphertext; split for the token form.
	ct, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]
	return fmt.Sprintf("%s:%s:%s",
		hex.EncodeToString(nonce),
		hex.EncodeToString(tag),
		hex.EncodeToString(ct),
	), nil
}

// Decrypt returns the plaintext for a token. Anything that fails to decode
// or authenticate is returned unchanged: storage still holds legacy
// unencrypted values and those must stay readable. Failures are logged.
func (c *Codec) Decrypt(token string) string {
	if token == "" {
		return token
	}
	nonce, tag, ct, ok := splitToken(token)
	if !ok {
		return token
	}
	sealed := append(append([]byte{}, ct...), tag...)
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		c.logger.Warn("pii: decrypt failed, returning value as-is", zap.Error(err))
		return token
	}
	return string(plaintext)
}

// IsEncrypted reports whether a value has the token shape. It does not
// prove authenticity; Decrypt does that.
func (c *Codec) IsEncrypted(value string) bool {
	_, _, _, ok := splitToken(value)
	return ok
}

func splitToken(token string) (nonce, tag, ct []byte, ok bool) {
	parts := strings.Split(token, ":")
	if len(parts) != 3 {
		return nil, nil, nil, false
	}
	nonce, err := hex.DecodeString(parts[0])
	if err != nil || len(nonce) != nonceSize {
		return nil, nil, nil, false
	}
	tag, err = hex.DecodeString(parts[1])
	if err != nil || len(tag) != tagSize {
		return nil, nil, nil, false
	}
	ct, err = hex.DecodeString(parts[2])
	if err != nil {
		return nil, nil, nil, false
	}
	return nonce, tag, ct, true
}
