package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	keySize  = 32
	saltSize = 16
	// pbkdf2 iteration count; raising it invalidates existing repositories,
	// so it is part of the on-disk contract.
	kdfIterations = 65536
)

// AESGCMCipher implements the Cipher interface with AES-256 in GCM mode.
// Every Encrypt call uses a fresh random nonce which is prepended to the
// ciphertext, so equal plaintexts never produce equal ciphertexts.
type AESGCMCipher struct {
	aead cipher.AEAD
}

// NewAESGCM returns a cipher sealed with the given 32-byte key.
func NewAESGCM(key []byte) (*AESGCMCipher, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("aes256-gcm requires a %d-byte key, got %d", keySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &AESGCMCipher{aead: aead}, nil
}

// Type returns the encryption type.
func (c *AESGCMCipher) Type() EncryptionType {
	return Encrypt_aesgcm
}

// TypeString returns the encryption type string.
func (c *AESGCMCipher) TypeString() string {
	return "aes256-gcm"
}

// Encrypt seals plain with a random nonce. Layout: nonce || ciphertext+tag.
func (c *AESGCMCipher) Encrypt(plain []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, plain, nil), nil
}

// Decrypt opens a block produced by Encrypt. A wrong key or a corrupted
// block yields ErrAuthentication.
func (c *AESGCMCipher) Decrypt(data []byte) ([]byte, error) {
	ns := c.aead.NonceSize()
	if len(data) < ns {
		return nil, fmt.Errorf("ciphertext shorter than nonce: %w", ErrAuthentication)
	}
	nonce, ciphertext := data[:ns], data[ns:]
	plain, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	if plain == nil {
		return []byte{}, nil
	}
	return plain, nil
}

// DeriveKey stretches a passphrase into an AES-256 key with PBKDF2-SHA256.
func DeriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, kdfIterations, keySize, sha256.New)
}

// NewSalt returns a fresh random salt for DeriveKey.
func NewSalt() ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}
