package utils

import (
	"crypto/rand"
	"encoding/hex"
)

const randomMessageSize = 64

// RandomMessage returns 64 random bytes, hex encoded.
func RandomMessage() (string, error) {
	buf := make([]byte, randomMessageSize)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
