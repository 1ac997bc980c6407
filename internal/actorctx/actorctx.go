package actorctx

import (
	"context"

	"github.com/geocoder89/taskhub/internal/domain/user"
)

type ctxKey struct{}

// WithIdentity records the authenticated caller on ctx for code below the HTTP layer.
func WithIdentity(ctx context.Context, id user.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func IdentityFrom(ctx context.Context) (user.Identity, bool) {
	v, ok := ctx.Value(ctxKey{}).(user.Identity)

	return v, ok && v.ID != ""
}

func UserIDFrom(ctx context.Context) (string, bool) {
	id, ok := IdentityFrom(ctx)

	return id.ID, ok
}
