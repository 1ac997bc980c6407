package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/geocoder89/taskhub/internal/apperr"
	"github.com/geocoder89/taskhub/internal/cache"
	"github.com/geocoder89/taskhub/internal/domain/user"
)

var (
	ErrNoToken        = errors.New("no token provided")
	ErrUnknownSubject = errors.New("token subject no longer exists")
)

// Conveyance is how the session token travels between client and server.
type Conveyance string

const (
	ConveyanceCookie Conveyance = "cookie"
	ConveyanceHeader Conveyance = "header"

	CookieName = "token"
)

func ParseConveyance(s string) (Conveyance, error) {
	switch c := Conveyance(strings.ToLower(strings.TrimSpace(s))); c {
	case ConveyanceCookie, ConveyanceHeader:
		return c, nil
	default:
		return "", fmt.Errorf("unknown token conveyance %q", s)
	}
}

// TokenFromRequest extracts the raw token from the configured transport.
func TokenFromRequest(r *http.Request, conveyance Conveyance) (string, bool) {
	switch conveyance {
	case ConveyanceHeader:
		authHeader := r.Header.Get("Authorization")
		if len(authHeader) < len("Bearer ") || !strings.EqualFold(authHeader[:len("Bearer ")], "Bearer ") {
			return "", false
		}
		raw := strings.TrimSpace(authHeader[len("Bearer "):])
		return raw, raw != ""
	default:
		c, err := r.Cookie(CookieName)
		if err != nil || c.Value == "" {
			return "", false
		}
		return c.Value, true
	}
}

// Keep this small interface so tests can fake it easily.
type TokenVerifier interface {
	Verify(token string) (*Claims, error)
}

type IdentityLookup interface {
	GetByID(ctx context.Context, id string) (user.Identity, error)
}

// Gate turns a raw session token into the caller's Identity.
type Gate struct {
	tokens     TokenVerifier
	users      IdentityLookup
	identities cache.Store
	conveyance Conveyance
}

// NewGate builds a gate. identities may be nil to always read the credential store.
func NewGate(tokens TokenVerifier, users IdentityLookup, identities cache.Store, conveyance Conveyance) *Gate {
	if conveyance == "" {
		conveyance = ConveyanceCookie
	}

	return &Gate{
		tokens:     tokens,
		users:      users,
		identities: identities,
		conveyance: conveyance,
	}
}

func (g *Gate) Conveyance() Conveyance {
	return g.conveyance
}

// AuthenticateRequest reads the token from r and authenticates it.
func (g *Gate) AuthenticateRequest(r *http.Request) (user.Identity, error) {
	raw, _ := TokenFromRequest(r, g.conveyance)
	return g.Authenticate(r.Context(), raw)
}

func (g *Gate) Authenticate(ctx context.Context, raw string) (user.Identity, error) {
	if raw == "" {
		return user.Identity{}, apperr.Unauthenticated("No token provided. Authorization denied.", ErrNoToken)
	}

	claims, err := g.tokens.Verify(raw)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return user.Identity{}, apperr.Unauthenticated("Token expired", err)
		}
		return user.Identity{}, apperr.Unauthenticated("Invalid token", err)
	}

	id, err := g.lookup(ctx, claims.UserID())
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return user.Identity{}, apperr.Unauthenticated("User not found. Authorization denied.", ErrUnknownSubject)
		}
		return user.Identity{}, apperr.Internal("Server error during authentication", err)
	}

	return id, nil
}

// Forget evicts a cached identity after the user record changes.
func (g *Gate) Forget(ctx context.Context, userID string) {
	if g.identities == nil {
		return
	}
	_ = g.identities.Delete(ctx, identityKey(userID))
}

func (g *Gate) lookup(ctx context.Context, userID string) (user.Identity, error) {
	if g.identities != nil {
		b, err := g.identities.Get(ctx, identityKey(userID))
		if err == nil {
			var id user.Identity
			if json.Unmarshal(b, &id) == nil && id.ID == userID {
				return id, nil
			}
		}
	}

	id, err := g.users.GetByID(ctx, userID)
	if err != nil {
		return user.Identity{}, err
	}

	if g.identities != nil {
		if b, err := json.Marshal(id); err == nil {
			_ = g.identities.Set(ctx, identityKey(userID), b)
		}
	}

	return id, nil
}

// FailureReason classifies an Authenticate error for metrics and logs.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, ErrNoToken):
		return "no_token"
	case errors.Is(err, ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, ErrUnknownSubject):
		return "unknown_subject"
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	default:
		return "error"
	}
}

func identityKey(userID string) string {
	return "identity:v1:" + userID
}
