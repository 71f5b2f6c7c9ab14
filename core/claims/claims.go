// Package claims carries the authenticated actor through the request
// context.
package claims

import (
	"context"

	"github.com/irsalhamdi/e-learning/errs"
)

const (
	RoleAdmin      = "admin"
	RoleInstructor = "instructor"
	RoleUser       = "user"
)

type Claims struct {
	UserID string
	Role   string
}

func (c Claims) IsAdmin() bool { return c.Role == RoleAdmin }

// CanAuthor reports whether the actor may create catalog content and promos.
func (c Claims) CanAuthor() bool { return c.Role == RoleAdmin || c.Role == RoleInstructor }

// Owns reports whether the actor is ownerID or an admin.
func (c Claims) Owns(ownerID string) bool { return c.IsAdmin() || c.UserID == ownerID }

type ctxKey int

const claimsKey ctxKey = 1

func Set(ctx context.Context, claims Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

func Get(ctx context.Context) (Claims, error) {
	v, ok := ctx.Value(claimsKey).(Claims)
	if !ok {
		return Claims{}, errs.New(errs.Unauthorized, "user not authenticated")
	}
	return v, nil
}
