package room

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 6
	// maxCodeAttempts bounds collision retries when allocating a code.
	maxCodeAttempts = 8
)

// CodeGenerator produces candidate room codes.
type CodeGenerator func() (string, error)

// RandomCode returns a random code drawn from [A-Z0-9].
func RandomCode() (string, error) {
	max := big.NewInt(int64(len(codeAlphabet)))
	var b strings.Builder
	b.Grow(codeLength)
	for i := 0; i < codeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate room code: %w", err)
		}
		b.WriteByte(codeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// NormalizeCode canonicalizes user-entered room codes.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// newResumeToken returns an opaque secret for re-attaching a participant.
// Random (v4) uuids come from crypto/rand.
func newResumeToken() string {
	return uuid.NewString()
}
