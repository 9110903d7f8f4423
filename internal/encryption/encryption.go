package encryption

import "errors"

type EncryptionType byte

const (
	Encrypt_none   EncryptionType = iota //0
	Encrypt_aesgcm                       //1
)

var (
	EncryptionMethods = map[string]EncryptionType{
		"none":       Encrypt_none,
		"aes256-gcm": Encrypt_aesgcm,
	}

	ErrInvalidEncryptionType = errors.New("invalid encryption type")
	// ErrAuthentication is returned when a ciphertext fails its integrity
	// check, typically because of a wrong key or corrupted data.
	ErrAuthentication = errors.New("authentication failed")
)

// Cipher defines the interface for sealing and opening byte blocks.
// Implementations must be safe for concurrent use.
type Cipher interface {
	// Encrypt seals plain and returns a self-contained ciphertext.
	Encrypt(plain []byte) ([]byte, error)

	// Decrypt opens a ciphertext produced by Encrypt.
	Decrypt(data []byte) ([]byte, error)

	// TypeString returns the name of the method, e.g. "aes256-gcm".
	TypeString() string
	Type() EncryptionType
}

func GetCipherViaString(encryptionStr string, key []byte) (Cipher, error) {
	encryptionType, ok := EncryptionMethods[encryptionStr]
	if !ok {
		return nil, ErrInvalidEncryptionType
	}
	return GetCipherViaType(encryptionType, key)
}

func GetCipherViaType(encryptionType EncryptionType, key []byte) (Cipher, error) {
	switch encryptionType {
	case Encrypt_none:
		return NewNone(), nil
	case Encrypt_aesgcm:
		return NewAESGCM(key)
	default:
		return nil, ErrInvalidEncryptionType
	}
}
