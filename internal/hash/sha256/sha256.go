// Package sha256 provides SHA-256 hashing utilities.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// shortHexLen is the digest prefix length used in derived filenames.
const shortHexLen = 8

// ShortHex returns the first 8 hex characters of the SHA-256 digest,
// used to salt derived document filenames against collisions.
func ShortHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:shortHexLen]
}
