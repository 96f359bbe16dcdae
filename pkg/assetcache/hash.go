package assetcache

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// ContentHash returns the lowercase hex SHA-256 digest of data: the
// storage key and manifest hash for an asset.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// RandomIDLen is the length in bytes of a random_id's underlying
// entropy. Base64url-no-pad encoding expands this to 43 characters.
const RandomIDLen = 32

// GenerateRandomID mints a new public retrieval token: 256 bits of
// crypto/rand, base64url-no-pad encoded. It must never be derived from
// content — that would let a client enumerate assets by guessing
// hashes.
func GenerateRandomID() (string, error) {
	var buf [RandomIDLen]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf[:]), nil
}
