package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"pet-subscription-sync/internal/domain"
	ucport "pet-subscription-sync/internal/domain/ports/usecase"
)

// IdentityClaims is the token issued by the account service: sub is the
// user id, email the login address.
type IdentityClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenVerifier validates HS256 bearer tokens.
type TokenVerifier struct {
	secret []byte
	issuer string
}

func NewTokenVerifier(secret, issuer string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret), issuer: issuer}
}

// Mint signs a token for id. Used by the CLI and tests.
func (v *TokenVerifier) Mint(id ucport.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := IdentityClaims{
		Email: id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    v.issuer,
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// ParseFromRequest reads "Authorization: Bearer <jwt>" and returns the caller.
func (v *TokenVerifier) ParseFromRequest(r *http.Request) (ucport.Identity, error) {
	hdr := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(hdr) < 7 || !strings.EqualFold(hdr[:7], "bearer ") {
		return ucport.Identity{}, fmt.Errorf("missing bearer token: %w", domain.ErrUnauthorized)
	}
	return v.parse(strings.TrimSpace(hdr[7:]))
}

func (v *TokenVerifier) parse(tok string) (ucport.Identity, error) {
	if len(v.secret) == 0 {
		return ucport.Identity{}, fmt.Errorf("jwt secret: %w", domain.ErrMissingConfig)
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	claims := &IdentityClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !tkn.Valid {
		return ucport.Identity{}, errors.Join(domain.ErrUnauthorized, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return ucport.Identity{}, fmt.Errorf("token without subject: %w", domain.ErrUnauthorized)
	}
	return ucport.Identity{UserID: strings.TrimSpace(claims.Subject), Email: claims.Email}, nil
}
