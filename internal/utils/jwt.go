package utils // package utils provides helpers for token minting, code generation and hashing

import (
	"crypto/rand"   // secure random bytes for authorization codes
	"crypto/sha256" // SHA-256 hashing for stored codes
	"encoding/hex"  // hex encoding of codes and digests
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for signing and verifying access tokens
	"github.com/google/uuid"       // random token ids
)

// ErrTokenInvalid is returned for any token that fails signature, expiry or
// claim checks.
var ErrTokenInvalid = errors.New("invalid token")

// AccessClaims is the payload of an access token minted at the token
// endpoint. The registered ID claim holds a random nonce so two tokens for
// the same identity never encode to the same string.
type AccessClaims struct {
	Me       string `json:"me"`
	ClientID string `json:"client_id"`
	Scope    string `json:"scope"`
	jwt.RegisteredClaims
}

// AccessToken represents a signed JWT access token along with its expiry.
// A zero Exp means the token carries no exp claim.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// NewAccessToken signs an HS256 token asserting me, clientID and scope.
// exp is normally the expiry of the authorization code the token was
// exchanged for.
func NewAccessToken(secret, me, clientID, scope string, exp time.Time) (AccessToken, error) {
	now := time.Now().UTC()
	claims := AccessClaims{
		Me:       me,
		ClientID: clientID,
		Scope:    scope,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if !exp.IsZero() {
		claims.ExpiresAt = jwt.NewNumericDate(exp.UTC())
	}
	// Sign with HS256; the same secret verifies in ParseAccessToken.
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp.UTC()}, nil
}

// ParseAccessToken verifies signature, algorithm and expiry and returns the
// claims. Any failure collapses to ErrTokenInvalid.
func ParseAccessToken(secret, raw string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		// Reject anything that isn't HMAC.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid || claims.Me == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// NewCode returns a fresh authorization code: 32 random bytes, hex encoded.
func NewCode() (string, error) {
	return randomHex(32) // 32 bytes -> 64 hex chars
}

// HashCode returns the SHA-256 hex digest of a raw code. Only this digest
// is persisted, so a leaked codes table cannot be replayed as bearer
// credentials.
func HashCode(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// randomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
