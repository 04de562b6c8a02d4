package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenCodec issues and verifies signed, time-limited account operation tokens.
// It holds no mutable state and is safe for concurrent use.
type TokenCodec struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

// NewTokenCodec builds a codec signing with secret. Tokens are accepted for
// maxAge after issue.
func NewTokenCodec(secret string, maxAge time.Duration) *TokenCodec {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &TokenCodec{secret: []byte(secret), maxAge: maxAge, now: time.Now}
}

// WithClock returns a copy of the codec that reads time from now.
func (c *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	cp := *c
	cp.now = now
	return &cp
}

// MaxAge returns the validity window.
func (c *TokenCodec) MaxAge() time.Duration {
	return c.maxAge
}

// tokenClaims is the signed body. Expiry is derived from the issue time
// rather than an exp claim so a change of max age applies to tokens already
// in flight. iat carries whole seconds only; iat_ms keeps the exact instant.
type tokenClaims struct {
	Operation      Operation      `json:"op"`
	Data           map[string]any `json:"data"`
	IssuedAtMillis int64          `json:"iat_ms"`
	jwt.RegisteredClaims
}

// VerifiedToken is the decoded content of a token that passed verification.
type VerifiedToken struct {
	ID        string
	Operation Operation
	Payload   Payload
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Issue serializes payload with its operation and the current time and signs it.
func (c *TokenCodec) Issue(payload Payload) (string, error) {
	if payload == nil {
		return "", errors.New("token payload required")
	}
	spec, ok := Lookup(payload.Operation())
	if !ok {
		return "", fmt.Errorf("unknown operation %q", payload.Operation())
	}
	if err := spec.validate(payload); err != nil {
		return "", err
	}

	now := c.now()
	claims := &tokenClaims{
		Operation:      spec.Operation,
		Data:           payload.Fields(),
		IssuedAtMillis: now.UnixMilli(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			IssuedAt: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Verify checks integrity, age and operation of token, in that order, and
// returns its typed payload.
func (c *TokenCodec) Verify(token string, expected Operation) (*VerifiedToken, error) {
	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(c.now))
	if err != nil || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.IssuedAt == nil || claims.ID == "" {
		return nil, ErrTokenInvalid
	}

	issuedAt := claims.IssuedAt.Time
	if claims.IssuedAtMillis != 0 {
		if claims.IssuedAtMillis/1000 != claims.IssuedAt.Unix() {
			return nil, ErrTokenInvalid
		}
		issuedAt = time.UnixMilli(claims.IssuedAtMillis)
	}
	expiresAt := issuedAt.Add(c.maxAge)
	if c.now().After(expiresAt) {
		return nil, ErrTokenExpired
	}

	if claims.Operation != expected {
		return nil, ErrOperationMismatch
	}

	spec, ok := Lookup(claims.Operation)
	if !ok {
		return nil, ErrTokenInvalid
	}
	payload, err := spec.Decode(claims.Data)
	if err != nil {
		return nil, err
	}

	return &VerifiedToken{
		ID:        claims.ID,
		Operation: claims.Operation,
		Payload:   payload,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}
