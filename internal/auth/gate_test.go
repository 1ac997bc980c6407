package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/geocoder89/taskhub/internal/apperr"
	"github.com/geocoder89/taskhub/internal/cache"
	"github.com/geocoder89/taskhub/internal/domain/user"
)

type fakeLookup struct {
	calls int
	users map[string]user.Identity
	err   error
}

func (f *fakeLookup) GetByID(_ context.Context, id string) (user.Identity, error) {
	f.calls++
	if f.err != nil {
		return user.Identity{}, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return user.Identity{}, apperr.NotFound("User not found")
	}
	return u, nil
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "bearer abc")
	r.AddCookie(&http.Cookie{Name: CookieName, Value: "from-cookie"})

	if got, ok := TokenFromRequest(r, ConveyanceHeader); !ok || got != "abc" {
		t.Fatalf("header: got %q %v", got, ok)
	}
	if got, ok := TokenFromRequest(r, ConveyanceCookie); !ok || got != "from-cookie" {
		t.Fatalf("cookie: got %q %v", got, ok)
	}

	bare := httptest.NewRequest(http.MethodGet, "/", nil)
	bare.Header.Set("Authorization", "Basic abc")
	if _, ok := TokenFromRequest(bare, ConveyanceHeader); ok {
		t.Fatalf("expected no bearer token")
	}
}

func TestGate_Authenticate(t *testing.T) {
	now := time.Now()
	tokens := NewManager("secret", time.Hour, WithClock(fixedClock(now)))
	alice := user.Identity{ID: "u-1", Username: "alice", Email: "alice@example.com", Role: user.RoleUser}
	lookup := &fakeLookup{users: map[string]user.Identity{"u-1": alice}}
	g := NewGate(tokens, lookup, cache.NewMemory(time.Minute), ConveyanceHeader)

	good, _, _ := tokens.Issue("u-1")
	ghost, _, _ := tokens.Issue("u-404")
	stale, _, _ := NewManager("secret", time.Hour, WithClock(fixedClock(now.Add(-2*time.Hour)))).Issue("u-1")

	id, err := g.Authenticate(context.Background(), good)
	if err != nil || id.ID != "u-1" {
		t.Fatalf("got %+v %v", id, err)
	}

	// second call is served from the identity cache
	if _, err := g.Authenticate(context.Background(), good); err != nil {
		t.Fatalf("cached: %v", err)
	}
	if lookup.calls != 1 {
		t.Fatalf("lookup calls = %d, want 1", lookup.calls)
	}

	g.Forget(context.Background(), "u-1")
	_, _ = g.Authenticate(context.Background(), good)
	if lookup.calls != 2 {
		t.Fatalf("lookup calls after forget = %d, want 2", lookup.calls)
	}

	cases := []struct {
		name     string
		raw      string
		msg      string
		reason   string
		sentinel error
	}{
		{"missing", "", "No token provided. Authorization denied.", "no_token", ErrNoToken},
		{"expired", stale, "Token expired", "token_expired", ErrTokenExpired},
		{"garbage", "abc", "Invalid token", "invalid_token", ErrInvalidToken},
		{"unknown subject", ghost, "User not found. Authorization denied.", "unknown_subject", ErrUnknownSubject},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := g.Authenticate(context.Background(), tc.raw)

			var ae *apperr.Error
			if !errors.As(err, &ae) || ae.Kind != apperr.KindUnauthenticated {
				t.Fatalf("got %v, want unauthenticated", err)
			}
			if ae.Message != tc.msg {
				t.Fatalf("message = %q, want %q", ae.Message, tc.msg)
			}
			if !errors.Is(err, tc.sentinel) {
				t.Fatalf("expected %v in chain", tc.sentinel)
			}
			if got := FailureReason(err); got != tc.reason {
				t.Fatalf("reason = %q, want %q", got, tc.reason)
			}
		})
	}
}

func TestGate_LookupFailureIsInternal(t *testing.T) {
	tokens := NewManager("secret", time.Hour)
	g := NewGate(tokens, &fakeLookup{err: errors.New("db down")}, nil, ConveyanceCookie)

	tok, _, _ := tokens.Issue("u-1")

	_, err := g.Authenticate(context.Background(), tok)
	if !apperr.IsKind(err, apperr.KindInternal) {
		t.Fatalf("got %v, want internal", err)
	}
}
