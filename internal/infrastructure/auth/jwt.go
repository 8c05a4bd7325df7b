// Package auth verifies the bearer tokens that identify the acting user and tenant.
// Tokens are issued by the identity service; this package never hands them out
// to clients.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/infrastructure/config"
)

var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrTokenNotYetValid = errors.New("token is not yet valid")
	ErrInvalidClaims    = errors.New("invalid token claims")
	ErrMissingTenantID  = errors.New("missing tenant_id in claims")
	ErrMissingUserID    = errors.New("missing user_id in claims")
	ErrMissingSecret    = errors.New("token secret is not configured")
)

// Claims are the JWT claims carried by an actor token
type Claims struct {
	jwt.RegisteredClaims
	TenantID string `json:"tenant_id"`
	UserID   string `json:"user_id"`
	Username string `json:"username,omitempty"`
}

// Actor is the verified identity behind a request
type Actor struct {
	TenantID uuid.UUID
	UserID   uuid.UUID
	Username string
}

// ActorVerifier verifies HS256 actor tokens
type ActorVerifier struct {
	secret []byte
	issuer string
	leeway time.Duration
	now    func() time.Time
}

// NewActorVerifier creates a verifier from configuration
func NewActorVerifier(cfg config.AuthConfig) (*ActorVerifier, error) {
	if cfg.Secret == "" {
		return nil, ErrMissingSecret
	}
	return &ActorVerifier{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		leeway: cfg.Leeway,
		now:    time.Now,
	}, nil
}

// Verify validates a token and returns the actor it names
func (v *ActorVerifier) Verify(tokenString string) (Actor, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return Actor{}, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return Actor{}, ErrTokenNotYetValid
		default:
			return Actor{}, ErrInvalidToken
		}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Actor{}, ErrInvalidClaims
	}
	return claims.Actor()
}

// Actor parses the identity claims
func (c *Claims) Actor() (Actor, error) {
	if c.TenantID == "" {
		return Actor{}, ErrMissingTenantID
	}
	if c.UserID == "" {
		return Actor{}, ErrMissingUserID
	}
	tenantID, err := uuid.Parse(c.TenantID)
	if err != nil {
		return Actor{}, ErrInvalidClaims
	}
	userID, err := uuid.Parse(c.UserID)
	if err != nil {
		return Actor{}, ErrInvalidClaims
	}
	return Actor{TenantID: tenantID, UserID: userID, Username: c.Username}, nil
}

// Sign creates a token for actor valid for ttl. Used by operator tooling and
// tests; production tokens come from the identity service.
func (v *ActorVerifier) Sign(actor Actor, ttl time.Duration) (string, error) {
	now := v.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    v.issuer,
			Subject:   actor.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TenantID: actor.TenantID.String(),
		UserID:   actor.UserID.String(),
		Username: actor.Username,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
