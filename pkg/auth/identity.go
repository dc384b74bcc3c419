package auth

import (
	"context"

	"agendify/pkg/model"
)

// Identity is the authenticated {account, role} pair attached to every
// request by the auth middleware. Downstream code trusts it and never
// re-verifies credentials.
type Identity struct {
	AccountID string
	Role      model.Role
}

type contextKey string

const identityKey contextKey = "identity"

func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}
