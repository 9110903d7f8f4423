package encryption

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testKey() []byte {
	salt := make([]byte, saltSize)
	return DeriveKey("correct horse battery staple", salt)
}

func TestGetCipher(t *testing.T) {
	key := testKey()

	c, err := GetCipherViaString("none", nil)
	assert.NoError(t, err)
	assert.IsType(t, &NoneCipher{}, c)

	c, err = GetCipherViaString("aes256-gcm", key)
	assert.NoError(t, err)
	assert.IsType(t, &AESGCMCipher{}, c)

	c, err = GetCipherViaString("rot13", nil)
	assert.Error(t, err)
	assert.Equal(t, ErrInvalidEncryptionType, err)
	assert.Nil(t, c)
}

func TestAESGCMRoundTrip(t *testing.T) {
	c, err := NewAESGCM(testKey())
	assert.NoError(t, err)

	plain := []byte("bundle payload bytes, compressed")
	sealed, err := c.Encrypt(plain)
	assert.NoError(t, err)
	assert.NotEqual(t, plain, sealed)

	// A second encryption of the same plaintext must differ (fresh nonce).
	sealed2, err := c.Encrypt(plain)
	assert.NoError(t, err)
	assert.NotEqual(t, sealed, sealed2)

	opened, err := c.Decrypt(sealed)
	assert.NoError(t, err)
	assert.Equal(t, plain, opened)
}

func TestAESGCMEmptyPlaintext(t *testing.T) {
	c, err := NewAESGCM(testKey())
	assert.NoError(t, err)

	sealed, err := c.Encrypt([]byte{})
	assert.NoError(t, err)

	opened, err := c.Decrypt(sealed)
	assert.NoError(t, err)
	assert.Equal(t, []byte{}, opened)
}

func TestAESGCMAuthFailure(t *testing.T) {
	c, err := NewAESGCM(testKey())
	assert.NoError(t, err)

	sealed, err := c.Encrypt([]byte("payload"))
	assert.NoError(t, err)

	t.Run("Tampered ciphertext", func(t *testing.T) {
		tampered := append([]byte(nil), sealed...)
		tampered[len(tampered)-1] ^= 0x01
		_, err := c.Decrypt(tampered)
		assert.ErrorIs(t, err, ErrAuthentication)
	})

	t.Run("Wrong key", func(t *testing.T) {
		salt, err := NewSalt()
		assert.NoError(t, err)
		other, err := NewAESGCM(DeriveKey("wrong passphrase", salt))
		assert.NoError(t, err)
		_, err = other.Decrypt(sealed)
		assert.ErrorIs(t, err, ErrAuthentication)
	})

	t.Run("Truncated block", func(t *testing.T) {
		_, err := c.Decrypt(sealed[:4])
		assert.ErrorIs(t, err, ErrAuthentication)
	})
}

func TestDeriveKeyDeterministic(t *testing.T) {
	salt, err := NewSalt()
	assert.NoError(t, err)

	k1 := DeriveKey("passphrase", salt)
	k2 := DeriveKey("passphrase", salt)
	assert.Equal(t, k1, k2)
	assert.Len(t, k1, keySize)

	salt2, err := NewSalt()
	assert.NoError(t, err)
	assert.NotEqual(t, k1, DeriveKey("passphrase", salt2))
}
