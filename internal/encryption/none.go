package encryption

// NoneCipher implements the Cipher interface as a pass-through for
// unencrypted repositories.
type NoneCipher struct{}

// NewNone returns a new NoneCipher.
func NewNone() *NoneCipher {
	return &NoneCipher{}
}

// Type returns the encryption type.
func (c *NoneCipher) Type() EncryptionType {
	return Encrypt_none
}

// TypeString returns the encryption type string.
func (c *NoneCipher) TypeString() string {
	return "none"
}

// Encrypt returns the data unchanged.
func (c *NoneCipher) Encrypt(plain []byte) ([]byte, error) {
	return plain, nil
}

// Decrypt returns the data unchanged.
func (c *NoneCipher) Decrypt(data []byte) ([]byte, error) {
	return data, nil
}
