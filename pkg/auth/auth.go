package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v4"
	"github.com/pkg/errors"
)

const (
	XUserNameHeader = "X-User-Name"
	XUserRoleHeader = "X-User-Role"
)

type Role string

const (
	RoleMember    Role = "member"
	RoleLibrarian Role = "librarian"
	RoleAdmin     Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleMember, RoleLibrarian, RoleAdmin:
		return true
	}
	return false
}

// Staff reports whether the role may manage circulation records
// beyond its own.
func (r Role) Staff() bool {
	return r == RoleLibrarian || r == RoleAdmin
}

type Profile struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

type Claims struct {
	Profile Profile `json:"profile"`
	jwt.RegisteredClaims
}

// Caller is the identity attached to every core call.
type Caller struct {
	ID   string
	Role Role
}

type callerKey struct{}

var ErrNoCaller = errors.New("no caller in context")

func SetAuthContext(ctx context.Context, username string, role Role) context.Context {
	return context.WithValue(ctx, callerKey{}, Caller{ID: username, Role: role})
}

func FromContext(ctx context.Context) (Caller, error) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	if !ok || c.ID == "" {
		return Caller{}, ErrNoCaller
	}
	return c, nil
}
