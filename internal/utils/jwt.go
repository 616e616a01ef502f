// Package utils issues and verifies the HS256 access tokens used when no
// remote identity service is configured.
package utils

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/event-seat-booking/internal/model"
)

// AccessToken is a signed JWT together with its expiry.
type AccessToken struct {
	Token string    `json:"token"`
	Exp   time.Time `json:"expiresAt"`
}

// Claims carries the identity fields next to the registered claims.  The
// subject is the user id.
type Claims struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// NewAccessToken signs an HS256 token for who that expires after ttl.
func NewAccessToken(secret string, who model.Identity, ttl time.Duration) (AccessToken, error) {
	if secret == "" {
		return AccessToken{}, errors.New("jwt secret is empty")
	}
	if who.ID == "" {
		return AccessToken{}, fmt.Errorf("%w: subject is required", model.ErrValidation)
	}
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := Claims{
		Name:  who.Name,
		Email: who.Email,
		Role:  who.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   who.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// JWTVerifier verifies tokens signed with a shared secret.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier returns a verifier for tokens signed with secret.
func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

// Verify parses token and returns the identity it carries.  Every failure
// is reported as model.ErrUnauthorized.
func (v *JWTVerifier) Verify(_ context.Context, token string) (model.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return model.Identity{}, fmt.Errorf("%w: missing token", model.ErrUnauthorized)
	}
	var claims Claims
	tok, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil || !tok.Valid {
		return model.Identity{}, fmt.Errorf("%w: invalid token", model.ErrUnauthorized)
	}
	if claims.Subject == "" {
		return model.Identity{}, fmt.Errorf("%w: token has no subject", model.ErrUnauthorized)
	}
	return model.Identity{
		ID:    claims.Subject,
		Name:  claims.Name,
		Email: claims.Email,
		Role:  claims.Role,
	}, nil
}
