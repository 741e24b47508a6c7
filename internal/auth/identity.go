package auth

import (
	"context"
	"strings"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// Identity is the authenticated caller resolved from the access token.
type Identity struct {
	UserID int64
	Email  string
	Role   Role
}

func (i *Identity) IsAdmin() bool {
	return i != nil && strings.EqualFold(string(i.Role), string(RoleAdmin))
}

type contextKey struct{}

func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(*Identity)
	return id, ok && id != nil
}

// UserID returns the caller's id, or nil for guests.
func UserID(ctx context.Context) *int64 {
	id, ok := FromContext(ctx)
	if !ok {
		return nil
	}
	uid := id.UserID
	return &uid
}
