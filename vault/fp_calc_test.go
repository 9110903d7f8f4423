package vault

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalcFP(t *testing.T) {
	fp := CalcFP([]byte("hello"))
	assert.Len(t, fp, FPSize)
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", FPToHex(fp))

	assert.Equal(t, fp, CalcFP([]byte("hello")))
	assert.NotEqual(t, fp, CalcFP([]byte("hello!")))

	empty := CalcFP(nil)
	assert.Len(t, empty, FPSize)
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", FPToHex(empty))
}
