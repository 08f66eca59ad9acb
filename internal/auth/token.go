package auth

import (
	"crypto/rand"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"kotadb/internal/kotaerr"
)

const (
	tokenPrefixLiteral = "kota"
	keyIDBytes         = 12 // hex-encoded, so 24 characters
	secretBytes        = 32 // hex-encoded, so 64 characters
	bcryptCost         = 12
)

// GenerateKeyID returns a new random, URL-safe key id (§4.8.3).
func GenerateKeyID() (string, error) {
	b := make([]byte, keyIDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", kotaerr.Wrap(kotaerr.InternalError, "generating key id", err)
	}
	return hex.EncodeToString(b), nil
}

// GenerateSecret returns a new random secret, the part of the token that
// gets bcrypt-hashed and stored.
func GenerateSecret() (string, error) {
	b := make([]byte, secretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", kotaerr.Wrap(kotaerr.InternalError, "generating token secret", err)
	}
	return hex.EncodeToString(b), nil
}

// FormatToken assembles the full bearer token in the
// kota_<tier>_<keyId>_<secret> format (§4.8.3).
func FormatToken(tier Tier, keyID, secret string) string {
	return strings.Join([]string{tokenPrefixLiteral, string(tier), keyID, secret}, "_")
}

// ParsedToken is a bearer token split into its components, before any
// verification against the store.
type ParsedToken struct {
	Tier   Tier
	KeyID  string
	Secret string
}

// ParseToken splits a raw bearer token into its components without
// verifying the secret. Returns an error if the token doesn't match the
// kota_<tier>_<keyId>_<secret> format.
func ParseToken(raw string) (*ParsedToken, error) {
	parts := strings.SplitN(raw, "_", 4)
	if len(parts) != 4 || parts[0] != tokenPrefixLiteral {
		return nil, kotaerr.New(kotaerr.AuthDenied, "malformed token").WithDetails(map[string]interface{}{"code": ErrCodeInvalidToken})
	}
	tier := Tier(parts[1])
	if tier != TierFree && tier != TierSolo && tier != TierTeam {
		return nil, kotaerr.New(kotaerr.AuthDenied, "unknown token tier").WithDetails(map[string]interface{}{"code": ErrCodeInvalidToken})
	}
	keyID, secret := parts[2], parts[3]
	if len(keyID) < 12 || len(secret) < 32 {
		return nil, kotaerr.New(kotaerr.AuthDenied, "malformed token").WithDetails(map[string]interface{}{"code": ErrCodeInvalidToken})
	}
	return &ParsedToken{Tier: tier, KeyID: keyID, Secret: secret}, nil
}

// HashSecret bcrypt-hashes a token's secret portion for storage.
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcryptCost)
	if err != nil {
		return "", kotaerr.Wrap(kotaerr.InternalError, "hashing token secret", err)
	}
	return string(hash), nil
}

// VerifySecret reports whether a token's plaintext secret matches the
// stored bcrypt hash.
func VerifySecret(hash, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

// MaskToken returns a display form safe for logs: the tier and key id, with
// the secret redacted.
func MaskToken(tier Tier, keyID string) string {
	return tokenPrefixLiteral + "_" + string(tier) + "_" + keyID + "_***"
}
