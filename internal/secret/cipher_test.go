package secret

import (
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCipher(t *testing.T) *Cipher {
	c, err := New([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	return c
}

func TestCipher_RoundTrip(t *testing.T) {
	c := newTestCipher(t)

	inputs := []string{
		"",
		"s3cret",
		"pass:word:with:colons",
		":",
		strings.Repeat("x", 16),
		strings.Repeat("y", 100),
		"ünïcødé ✓",
	}

	for _, in := range inputs {
		token, err := c.Encrypt(in)
		require.NoError(t, err)

		out, err := c.Decrypt(token)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	}
}

func TestCipher_TokenFormat(t *testing.T) {
	c := newTestCipher(t)

	token, err := c.Encrypt("hello")
	require.NoError(t, err)

	parts := strings.Split(token, ":")
	require.Len(t, parts, 2)

	iv, err := hex.DecodeString(parts[0])
	require.NoError(t, err)
	assert.Len(t, iv, IVLength)

	ct, err := hex.DecodeString(parts[1])
	require.NoError(t, err)
	assert.Len(t, ct, 16)
}

func TestCipher_FreshIVPerCall(t *testing.T) {
	c := newTestCipher(t)

	a, err := c.Encrypt("same")
	require.NoError(t, err)
	b, err := c.Encrypt("same")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestCipher_DecryptMalformed(t *testing.T) {
	c := newTestCipher(t)

	valid, err := c.Encrypt("hello")
	require.NoError(t, err)
	ivHex, ctHex, _ := strings.Cut(valid, ":")

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"no separator", ivHex + ctHex},
		{"empty iv", ":" + ctHex},
		{"non-hex iv", "zz" + ivHex[2:] + ":" + ctHex},
		{"short iv", ivHex[:8] + ":" + ctHex},
		{"non-hex ciphertext", ivHex + ":nothex"},
		{"empty ciphertext", ivHex + ":"},
		{"partial block", ivHex + ":" + ctHex[:10]},
		{"extra segment", valid + ":00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Decrypt(tt.token)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrDecryption))

			var decErr *DecryptionError
			assert.True(t, errors.As(err, &decErr))
		})
	}
}

func TestCipher_DecryptWithOtherKey(t *testing.T) {
	c := newTestCipher(t)
	other, err := New([]byte("fedcba9876543210fedcba9876543210"))
	require.NoError(t, err)

	token, err := c.Encrypt("tenant-password")
	require.NoError(t, err)

	// A wrong key usually breaks the padding; when it does not, the output
	// must still differ from the plaintext.
	out, err := other.Decrypt(token)
	if err == nil {
		assert.NotEqual(t, "tenant-password", out)
	} else {
		assert.True(t, errors.Is(err, ErrDecryption))
	}
}

func TestNew_RejectsBadKeySize(t *testing.T) {
	_, err := New([]byte("short"))
	assert.Error(t, err)
}

func TestResolveKey(t *testing.T) {
	t.Run("raw 32 byte key", func(t *testing.T) {
		key, generated, err := ResolveKey("0123456789abcdef0123456789abcdef")
		require.NoError(t, err)
		assert.False(t, generated)
		assert.Equal(t, []byte("0123456789abcdef0123456789abcdef"), key)
	})

	t.Run("hex key", func(t *testing.T) {
		material := strings.Repeat("ab", KeySize)
		key, generated, err := ResolveKey(material)
		require.NoError(t, err)
		assert.False(t, generated)
		assert.Equal(t, byte(0xab), key[0])
		assert.Len(t, key, KeySize)
	})

	t.Run("derived key is stable", func(t *testing.T) {
		a, generated, err := ResolveKey("a passphrase of arbitrary length")
		require.NoError(t, err)
		assert.False(t, generated)
		b, _, err := ResolveKey("a passphrase of arbitrary length")
		require.NoError(t, err)
		assert.Equal(t, a, b)
		assert.Len(t, a, KeySize)
	})

	t.Run("generated key", func(t *testing.T) {
		a, generated, err := ResolveKey("")
		require.NoError(t, err)
		assert.True(t, generated)
		assert.Len(t, a, KeySize)

		b, _, err := ResolveKey("")
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})
}
