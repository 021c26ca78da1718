package auth

import "context"

type identityKey struct{}

type contextKey struct{}

// Identity is the verified caller, independent of any group.
type Identity struct {
	UID         string
	DisplayName string
	Email       string
	PhotoURL    string
}

// AuthContext is the caller's standing inside the group named in the path.
type AuthContext struct {
	UserID  string
	GroupID string
	Role    string
}

const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

func GroupID(ctx context.Context) string {
	ac, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return ac.GroupID
}

// UserID returns the caller's uid from the group context, falling back to
// the bare identity.
func UserID(ctx context.Context) string {
	if ac, ok := FromContext(ctx); ok {
		return ac.UserID
	}
	id, _ := IdentityFrom(ctx)
	return id.UID
}

func IsAdmin(ctx context.Context) bool {
	ac, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return ac.Role == RoleAdmin
}
