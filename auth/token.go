package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/digidem/comapeo-cloud/errors"
)

// BearerScheme is the literal scheme prefix expected in Authorization
// headers. The trailing space is part of it.
const BearerScheme = "Bearer "

const tokenBytes = 32

// GenerateToken returns a fresh random opaque token, hex-encoded.
func GenerateToken() string {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	return hex.EncodeToString(buf)
}

// ValidBearer reports whether header is exactly the "Bearer " scheme followed
// by expected. The length is checked first so the comparison below always
// runs on same-size inputs; the token bytes themselves are compared in
// constant time. An absent header compares as the empty string and fails.
func ValidBearer(header, expected string) bool {
	if len(header) != len(BearerScheme)+len(expected) {
		return false
	}
	if !strings.HasPrefix(header, BearerScheme) {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(header[len(BearerScheme):]), []byte(expected)) == 1
}

// BearerToken extracts the token from an Authorization header value. It fails
// with Unauthorized when the header is absent or not a bearer header.
func BearerToken(header string) (string, error) {
	if len(header) <= len(BearerScheme) || !strings.HasPrefix(header, BearerScheme) {
		return "", errors.New("invalid bearer token", errors.Unauthorized())
	}
	return header[len(BearerScheme):], nil
}

// TrimBearer strips an optional "Bearer " scheme from a token value. Store
// lookups accept raw header values and compare the bare token.
func TrimBearer(token string) string {
	return strings.TrimPrefix(token, BearerScheme)
}
