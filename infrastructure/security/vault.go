package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/larry311012/ai-news-hub-sub002/domain/model"
)

const (
	KeySize       = chacha20poly1305.KeySize
	ciphertextTag = "v1."
	maskMinLength = 8
	maskFill      = "••••"
)

var hkdfSalt = []byte("ai-news-hub/vault")

// Vault seals secrets with XChaCha20-Poly1305. Output: "v1." || base64url(nonce(24) || ciphertext+tag).
type Vault struct {
	key [KeySize]byte
}

func NewVault(key [KeySize]byte) *Vault {
	return &Vault{key: key}
}

// NewVaultFromConfig accepts either a base64 encoded 32 byte key or a passphrase, which is
// stretched with HKDF-SHA256.
func NewVaultFromConfig(encodedKey, passphrase string) (*Vault, error) {
	if encodedKey != "" {
		key, err := DecodeKey(encodedKey)
		if err != nil {
			return nil, err
		}
		return NewVault(key), nil
	}
	if passphrase == "" {
		return nil, errors.New("vault key is not configured")
	}
	var key [KeySize]byte
	r := hkdf.New(sha256.New, []byte(passphrase), hkdfSalt, []byte("v1"))
	if _, err := io.ReadFull(r, key[:]); err != nil {
		return nil, fmt.Errorf("derive vault key: %w", err)
	}
	return NewVault(key), nil
}

// GenerateKey returns a fresh random key in the encoding DecodeKey accepts.
func GenerateKey() (string, error) {
	var key [KeySize]byte
	if _, err := rand.Read(key[:]); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key[:]), nil
}

func DecodeKey(encoded string) ([KeySize]byte, error) {
	var key [KeySize]byte
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		raw, err = base64.RawURLEncoding.DecodeString(strings.TrimSpace(encoded))
	}
	if err != nil {
		return key, fmt.Errorf("decode vault key: %w", err)
	}
	if len(raw) != KeySize {
		return key, fmt.Errorf("vault key must be %d bytes, got %d", KeySize, len(raw))
	}
	copy(key[:], raw)
	return key, nil
}

func (v *Vault) Encrypt(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(v.key[:])
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), []byte(ciphertextTag))
	return ciphertextTag + base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (v *Vault) Decrypt(ciphertext string) (string, error) {
	if !strings.HasPrefix(ciphertext, ciphertextTag) {
		return "", fmt.Errorf("%w: unknown ciphertext version", model.ErrDecryption)
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(ciphertext, ciphertextTag))
	if err != nil {
		return "", fmt.Errorf("%w: malformed ciphertext", model.ErrDecryption)
	}
	aead, err := chacha20poly1305.NewX(v.key[:])
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}
	if len(raw) < aead.NonceSize()+aead.Overhead() {
		return "", fmt.Errorf("%w: ciphertext too short", model.ErrDecryption)
	}
	nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, []byte(ciphertextTag))
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrDecryption, err)
	}
	return string(plain), nil
}

// Mask shows the first and last four characters. Short values reveal nothing.
func (v *Vault) Mask(plaintext string) string {
	return Mask(plaintext)
}

func Mask(plaintext string) string {
	r := []rune(plaintext)
	if len(r) <= maskMinLength {
		return maskFill
	}
	return string(r[:4]) + maskFill + string(r[len(r)-4:])
}
