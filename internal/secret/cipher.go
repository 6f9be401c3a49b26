// Package secret encrypts tenant credentials for at-rest storage in the ledger.
package secret

import (
	"bytes"
	"crypto/aes"
	gocipher "crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	// IVLength is the size of the random initialization vector of every token
	IVLength = aes.BlockSize
	// KeySize is the AES-256 key size
	KeySize = 32

	tokenSeparator = ":"
	hkdfInfo       = "ymts-crud-api secret cipher"
)

// ErrDecryption matches every DecryptionError via errors.Is
var ErrDecryption = errors.New("decryption failed")

// DecryptionError reports a malformed or unauthentic ciphertext token
type DecryptionError struct {
	Reason string
	Cause  error
}

func (e *DecryptionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("decryption failed: %s: %v", e.Reason, e.Cause)
	}
	return "decryption failed: " + e.Reason
}

func (e *DecryptionError) Unwrap() error {
	return e.Cause
}

func (e *DecryptionError) Is(target error) bool {
	return target == ErrDecryption
}

// Cipher encrypts and decrypts secrets with AES-256-CBC. Tokens have the form
// <iv_hex>:<ciphertext_hex> with a fresh IV per call.
type Cipher struct {
	block gocipher.Block
}

// ResolveKey turns configured key material into an AES-256 key.
// A 32-byte value is used as-is, a 64-character hex value is decoded and any
// other value is stretched with HKDF-SHA256. Empty material yields a random
// key and generated=true; ciphertexts produced with it do not survive a restart.
func ResolveKey(material string) (key []byte, generated bool, err error) {
	switch {
	case material == "":
		key = make([]byte, KeySize)
		if _, err := io.ReadFull(rand.Reader, key); err != nil {
			return nil, false, fmt.Errorf("failed to generate cipher key: %w", err)
		}
		return key, true, nil
	case len(material) == KeySize:
		return []byte(material), false, nil
	case len(material) == 2*KeySize:
		if decoded, err := hex.DecodeString(material); err == nil {
			return decoded, false, nil
		}
	}

	key = make([]byte, KeySize)
	kdf := hkdf.New(sha256.New, []byte(material), nil, []byte(hkdfInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, false, fmt.Errorf("failed to derive cipher key: %w", err)
	}
	return key, false, nil
}

// New creates a Cipher for a 32-byte key
func New(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("cipher key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create block cipher: %w", err)
	}
	return &Cipher{block: block}, nil
}

// Encrypt returns the token for plaintext
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	iv := make([]byte, IVLength)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("failed to generate initialization vector: %w", err)
	}

	padded := pad([]byte(plaintext))
	ciphertext := make([]byte, len(padded))
	gocipher.NewCBCEncrypter(c.block, iv).CryptBlocks(ciphertext, padded)

	return hex.EncodeToString(iv) + tokenSeparator + hex.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt. Malformed tokens yield a *DecryptionError.
func (c *Cipher) Decrypt(token string) (string, error) {
	ivHex, ctHex, found := strings.Cut(token, tokenSeparator)
	if !found || ivHex == "" {
		return "", &DecryptionError{Reason: "missing initialization vector segment"}
	}

	iv, err := hex.DecodeString(ivHex)
	if err != nil {
		return "", &DecryptionError{Reason: "initialization vector is not hex", Cause: err}
	}
	if len(iv) != IVLength {
		return "", &DecryptionError{Reason: fmt.Sprintf("initialization vector must be %d bytes, got %d", IVLength, len(iv))}
	}

	ciphertext, err := hex.DecodeString(ctHex)
	if err != nil {
		return "", &DecryptionError{Reason: "ciphertext is not hex", Cause: err}
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", &DecryptionError{Reason: "ciphertext is not a whole number of blocks"}
	}

	plaintext := make([]byte, len(ciphertext))
	gocipher.NewCBCDecrypter(c.block, iv).CryptBlocks(plaintext, ciphertext)

	unpadded, err := unpad(plaintext)
	if err != nil {
		return "", &DecryptionError{Reason: "invalid padding", Cause: err}
	}
	return string(unpadded), nil
}

// pad applies PKCS#7 padding
func pad(data []byte) []byte {
	n := aes.BlockSize - len(data)%aes.BlockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

// unpad strips PKCS#7 padding
func unpad(data []byte) ([]byte, error) {
	n := int(data[len(data)-1])
	if n == 0 || n > aes.BlockSize || n > len(data) {
		return nil, errors.New("bad padding length")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, errors.New("bad padding bytes")
		}
	}
	return data[:len(data)-n], nil
}
