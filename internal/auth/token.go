package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"filestore/internal/filestore"
)

// Claims carries the authenticated user. Subject holds the username.
type Claims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 access tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	clock  filestore.Clock
}

// NewTokenIssuer creates an issuer whose tokens live for ttl.
func NewTokenIssuer(secret string, ttl time.Duration, clock filestore.Clock) *TokenIssuer {
	if clock == nil {
		clock = filestore.RealClock{}
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, clock: clock}
}

// Issue returns a signed token for p.
func (i *TokenIssuer) Issue(p filestore.Principal) (string, error) {
	now := i.clock.Now()
	claims := Claims{
		UserID: p.UserID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature, algorithm and expiry of token and returns
// the principal it names.
func (i *TokenIssuer) Verify(token string) (filestore.Principal, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.clock.Now),
	)
	if err != nil {
		return filestore.Principal{}, fmt.Errorf("%w: %v", filestore.ErrUnauthorized, err)
	}
	if claims.Subject == "" || claims.UserID == "" {
		return filestore.Principal{}, fmt.Errorf("%w: %v", filestore.ErrUnauthorized, errors.New("token missing subject"))
	}
	return filestore.Principal{UserID: claims.UserID, Username: claims.Subject}, nil
}
