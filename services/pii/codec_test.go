package pii

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := New(testKey, zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestNewRejectsBadKeys(t *testing.T) {
	cases := []struct {
		name string
		key  string
	}{
		{"empty", ""},
		{"short", "00010203"},
		{"not hex", strings.Repeat("zz", 32)},
		{"too long", testKey + "ff"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.key, zap.NewNop())
			assert.Error(t, err)
		})
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c := newTestCodec(t)

	for _, plaintext := range []string{"P1234567", "+84 912 345 678", "ả đơn giản"} {
		token, err := c.Encrypt(plaintext)
		require.NoError(t, err)
		assert.NotEqual(t, plaintext, token)
		assert.True(t, c.IsEncrypted(token))
		assert.Equal(t, plaintext, c.Decrypt(token))
	}
}

func TestEncryptIsNotDeterministic(t *testing.T) {
	c := newTestCodec(t)
	a, err := c.Encrypt("P1234567")
	require.NoError(t, err)
	b, err := c.Encrypt("P1234567")
	require.NoError(t, err)
	assert.NotEqual(t, a, b) // fresh nonce per call
}

func TestEncryptSkipsAlreadyEncrypted(t *testing.T) {
	c := newTestCodec(t)
	token, err := c.Encrypt("P1234567")
	require.NoError(t, err)

	again, err := c.Encrypt(token)
	require.NoError(t, err)
	assert.Equal(t, token, again)
	assert.Equal(t, "P1234567", c.Decrypt(again))
}

func TestDecryptReturnsLegacyValuesUnchanged(t *testing.T) {
	c := newTestCodec(t)

	for _, legacy := range []string{"P1234567", "0912345678", "a:b", "", "x:y:z"} {
		assert.Equal(t, legacy, c.Decrypt(legacy))
	}
}

func TestDecryptTamperedTokenFailsClosed(t *testing.T) {
	c := newTestCodec(t)
	token, err := c.Encrypt("P1234567")
	require.NoError(t, err)

	// Flip one hex digit inside the ciphertext part.
	parts := strings.Split(token, ":")
	require.Len(t, parts, 3)
	ct := []byte(parts[2])
	if ct[0] == 'a' {
		ct[0] = 'b'
	} else {
		ct[0] = 'a'
	}
	tampered := parts[0] + ":" + parts[1] + ":" + string(ct)

	// The tag no longer matches, so the caller gets the input back instead
	// of silently wrong plaintext.
	assert.Equal(t, tampered, c.Decrypt(tampered))
}

func TestIsEncrypted(t *testing.T) {
	c := newTestCodec(t)
	token, err := c.Encrypt("secret")
	require.NoError(t, err)

	assert.True(t, c.IsEncrypted(token))
	assert.False(t, c.IsEncrypted("plain value"))
	assert.False(t, c.IsEncrypted("a:b:c"))
	assert.False(t, c.IsEncrypted(""))
}
