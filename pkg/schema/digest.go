package schema

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Digest fingerprints the raw schema bytes so output tables record exactly
// which schema they were weighted with.
func Digest(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}
