package auth

import (
	"crypto/rand"
	"encoding/hex"
)

// GenerateCode returns a random hex string of byteSize entropy bytes, used
// for email verification and password-recovery codes.
func GenerateCode(byteSize int) (string, error) {
	buf := make([]byte, byteSize)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
