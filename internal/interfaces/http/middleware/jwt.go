package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/infrastructure/auth"
	"github.com/invoicing/backend/internal/infrastructure/logger"
	"github.com/invoicing/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// Actor context keys
const (
	ActorKey      = "actor"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
)

// ActorVerifier verifies a bearer token and returns the actor it names
type ActorVerifier interface {
	Verify(token string) (auth.Actor, error)
}

// ActorMiddlewareConfig holds configuration for the actor middleware
type ActorMiddlewareConfig struct {
	// Verifier is required for token validation
	Verifier ActorVerifier
	// SkipPaths are paths that don't require authentication
	SkipPaths []string
	// Logger for authentication failures
	Logger *zap.Logger
}

// DefaultActorConfig returns the default actor middleware configuration
func DefaultActorConfig(verifier ActorVerifier) ActorMiddlewareConfig {
	return ActorMiddlewareConfig{
		Verifier:  verifier,
		SkipPaths: []string{"/health", "/healthz", "/ready"},
	}
}

// Actor returns middleware that requires a valid actor token
func Actor(verifier ActorVerifier) gin.HandlerFunc {
	return ActorWithConfig(DefaultActorConfig(verifier))
}

// ActorWithConfig returns middleware that verifies the bearer token, stores the
// actor in the gin context and tags the request logger with tenant and actor
func ActorWithConfig(cfg ActorMiddlewareConfig) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		header := c.GetHeader(AuthHeaderKey)
		if header == "" {
			abortUnauthorized(c, cfg, auth.ErrInvalidToken, "Missing authorization header")
			return
		}
		if !strings.HasPrefix(header, BearerPrefix) {
			abortUnauthorized(c, cfg, auth.ErrInvalidToken, "Invalid authorization header format")
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, BearerPrefix))
		if token == "" {
			abortUnauthorized(c, cfg, auth.ErrInvalidToken, "Missing token")
			return
		}

		actor, err := cfg.Verifier.Verify(token)
		if err != nil {
			abortUnauthorized(c, cfg, err, "Token validation failed")
			return
		}

		c.Set(ActorKey, actor)
		ctx := logger.WithTenantID(c.Request.Context(), actor.TenantID)
		ctx = logger.WithActorID(ctx, actor.UserID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, cfg ActorMiddlewareConfig, err error, reason string) {
	if cfg.Logger != nil {
		cfg.Logger.Warn("Actor authentication failed",
			zap.Error(err),
			zap.String("reason", reason),
			zap.String("path", c.Request.URL.Path),
		)
	}

	code, message := dto.ErrCodeUnauthorized, "Authentication required"
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		code, message = dto.ErrCodeTokenExpired, "Token has expired"
	case errors.Is(err, auth.ErrTokenNotYetValid):
		message = "Token is not yet valid"
	case errors.Is(err, auth.ErrMissingTenantID), errors.Is(err, auth.ErrMissingUserID), errors.Is(err, auth.ErrInvalidClaims):
		message = "Token does not name a tenant and user"
	}

	c.AbortWithStatusJSON(http.StatusUnauthorized,
		dto.Failure(code, message, logger.GetRequestID(c.Request.Context())))
}

// GetActor retrieves the verified actor from the gin context
func GetActor(c *gin.Context) (auth.Actor, bool) {
	if v, exists := c.Get(ActorKey); exists {
		if actor, ok := v.(auth.Actor); ok {
			return actor, true
		}
	}
	return auth.Actor{}, false
}

// GetTenantID returns the tenant of the verified actor, or uuid.Nil
func GetTenantID(c *gin.Context) uuid.UUID {
	actor, _ := GetActor(c)
	return actor.TenantID
}

// GetActorID returns the user ID of the verified actor, or uuid.Nil
func GetActorID(c *gin.Context) uuid.UUID {
	actor, _ := GetActor(c)
	return actor.UserID
}
