package actorctx

import (
	"context"
	"testing"

	"github.com/geocoder89/taskhub/internal/domain/user"
)

func TestIdentityRoundTrip(t *testing.T) {
	if _, ok := UserIDFrom(context.Background()); ok {
		t.Fatalf("empty context should carry no identity")
	}

	ctx := WithIdentity(context.Background(), user.Identity{ID: "u-1", Role: user.RoleAdmin})

	id, ok := IdentityFrom(ctx)
	if !ok || id.ID != "u-1" || !id.IsAdmin() {
		t.Fatalf("got %+v %v", id, ok)
	}

	if _, ok := IdentityFrom(WithIdentity(context.Background(), user.Identity{})); ok {
		t.Fatalf("identity without id should not count")
	}
}
