package utils // package utils provides token creation, parsing and hashing helpers

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token type discriminators embedded in the "type" claim.  Decode refuses a
// refresh token where an access token is expected and vice versa.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Decode failure modes.  All failure paths return one of these; malformed or
// tampered input never surfaces an uncontrolled error to the caller.
var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrTokenExpired     = errors.New("token expired")
	ErrWrongTokenType   = errors.New("unexpected token type")
)

// Claims is the signed claim set carried by both access and refresh tokens.
// Access tokens carry the full identity (id, email, role); refresh tokens
// carry only the subject id.
type Claims struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role,omitempty"`
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// TokenCodec signs and parses HS256 JWTs with a process-wide secret.  It is
// constructed once from config and injected; business logic never reads the
// secret from ambient state.
type TokenCodec struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// IssueAccess mints a short-lived, self-contained access token.  Validity is
// determined purely by signature and expiry; no store lookup is involved.
func (c TokenCodec) IssueAccess(userID, email, role string) (string, time.Time, error) {
	return c.issue(&Claims{
		UserID:    userID,
		Email:     email,
		Role:      role,
		TokenType: TokenTypeAccess,
	}, c.AccessTTL)
}

// IssueRefresh mints a long-lived refresh token.  The caller is expected to
// persist HashToken(token) server-side; the raw string goes to the client.
func (c TokenCodec) IssueRefresh(userID string) (string, time.Time, error) {
	return c.issue(&Claims{
		UserID:    userID,
		TokenType: TokenTypeRefresh,
	}, c.RefreshTTL)
}

func (c TokenCodec) issue(claims *Claims, ttl time.Duration) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   claims.UserID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.Secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Decode verifies signature, expiry and token type.  A bad MAC yields
// ErrInvalidSignature, a stale token ErrTokenExpired, a type mismatch
// ErrWrongTokenType, anything else ErrInvalidToken.
func (c TokenCodec) Decode(token, expectedType string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSignature
		}
		return []byte(c.Secret), nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrInvalidSignature
		default:
			return nil, ErrInvalidToken
		}
	}
	if !tok.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != expectedType {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

// HashToken returns the SHA-256 hash of a raw refresh token as a hex string.
// Only the hash is stored, so stolen database rows cannot renew sessions.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
