package middlewares

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/geocoder89/taskhub/internal/actorctx"
	"github.com/geocoder89/taskhub/internal/apperr"
	"github.com/geocoder89/taskhub/internal/auth"
	"github.com/geocoder89/taskhub/internal/authz"
	"github.com/geocoder89/taskhub/internal/domain/user"
	"github.com/gin-gonic/gin"
)

// Keep this small interface so tests can fake it easily.
type Authenticator interface {
	AuthenticateRequest(r *http.Request) (user.Identity, error)
}

type FailureRecorder interface {
	ObserveAuthFailure(reason string)
}

type AuthMiddleware struct {
	gate    Authenticator
	metrics FailureRecorder
}

// NewAuthMiddleware wires the gate; metrics may be nil.
func NewAuthMiddleware(gate Authenticator, metrics FailureRecorder) *AuthMiddleware {
	return &AuthMiddleware{gate: gate, metrics: metrics}
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := m.gate.AuthenticateRequest(c.Request)
		if err != nil {
			reason := auth.FailureReason(err)
			if m.metrics != nil {
				m.metrics.ObserveAuthFailure(reason)
			}

			var ae *apperr.Error
			if errors.As(err, &ae) && ae.Kind == apperr.KindUnauthenticated {
				abort(c, http.StatusUnauthorized, ae.Message)
				return
			}

			slog.Default().ErrorContext(c.Request.Context(), "auth_lookup_failed", "err", err, "request_id", c.GetString(CtxRequestID))
			abort(c, http.StatusInternalServerError, "Server error during authentication")
			return
		}

		// Stash the identity for handlers and for code below the HTTP layer
		c.Set(CtxIdentity, identity)
		c.Set(CtxUserID, identity.ID)
		c.Request = c.Request.WithContext(actorctx.WithIdentity(c.Request.Context(), identity))

		c.Next()
	}
}

// Optional helpers so handlers don’t need to know the magic keys.

func IdentityFromContext(c *gin.Context) (user.Identity, bool) {
	v, ok := c.Get(CtxIdentity)
	if !ok {
		return user.Identity{}, false
	}
	id, ok := v.(user.Identity)
	return id, ok && id.ID != ""
}

func UserIDFromContext(c *gin.Context) (string, bool) {
	id, ok := IdentityFromContext(c)
	return id.ID, ok
}

// RequireRole must run after RequireAuth.
func (m *AuthMiddleware) RequireRole(roles ...user.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := IdentityFromContext(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "Not authenticated")
			return
		}

		if err := authz.RequireRole(identity, roles...); err != nil {
			msg := "Access denied"
			var ae *apperr.Error
			if errors.As(err, &ae) {
				msg = ae.Message
			}
			abort(c, http.StatusForbidden, msg)
			return
		}

		c.Next()
	}
}
