package vault

import (
	"crypto/sha256"

	"github.com/zhengshuai-xiao/VaultS/internal"
)

// FPSize is the byte length of a chunk fingerprint.
const FPSize = sha256.Size

// CalcFP computes the fingerprint of a chunk. The result is the raw
// SHA-256 digest carried in a string so it can be used as a map key;
// render it with internal.StringToHex for logs.
func CalcFP(data []byte) string {
	sum := sha256.Sum256(data)
	return string(sum[:])
}

// FPToHex renders a fingerprint for logging.
func FPToHex(fp string) string {
	return internal.StringToHex(fp)
}
