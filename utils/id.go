package utils

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"
)

// GenerateID generates a secure random hex ID
func GenerateID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to less secure ID if robust source fails
		return fmt.Sprintf("%x", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}

// RandomUint64 returns a random 64-bit value, used for activation
// tie-breaking under the random conflict-resolution strategy.
func RandomUint64() uint64 {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return uint64(time.Now().UnixNano())
	}
	return binary.LittleEndian.Uint64(bytes)
}
