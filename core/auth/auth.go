// Package auth authenticates requests with session tokens sent as bearer
// tokens and provides the signup, login and OAuth flows.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/irsalhamdi/e-learning/api/web"
	"github.com/irsalhamdi/e-learning/core/claims"
	"github.com/irsalhamdi/e-learning/core/user"
	"github.com/irsalhamdi/e-learning/errs"
)

const (
	userIDKey = "userID"
	roleKey   = "role"
)

type Token struct {
	Token  string    `json:"token"`
	Expiry time.Time `json:"expiry"`
}

// Login starts a new session for usr and returns its token.
func Login(ctx context.Context, sm *scs.SessionManager, usr user.User) (Token, error) {
	ctx, err := sm.Load(ctx, "")
	if err != nil {
		return Token{}, fmt.Errorf("loading session: %w", err)
	}

	sm.Put(ctx, userIDKey, usr.ID)
	sm.Put(ctx, roleKey, usr.Role)

	tok, expiry, err := sm.Commit(ctx)
	if err != nil {
		return Token{}, fmt.Errorf("committing session: %w", err)
	}
	return Token{Token: tok, Expiry: expiry}, nil
}

// Authenticate loads the session named by the bearer token and stores the
// actor's claims in the context.
func Authenticate(sm *scs.SessionManager) web.Middleware {
	return session(sm, true)
}

// Identify is Authenticate for public routes: requests without a valid
// token pass through anonymously.
func Identify(sm *scs.SessionManager) web.Middleware {
	return session(sm, false)
}

func session(sm *scs.SessionManager, required bool) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			tok := web.BearerToken(r)
			if tok == "" {
				if !required {
					return handler(ctx, w, r)
				}
				return errs.New(errs.Unauthorized, "missing bearer token")
			}

			sctx, err := sm.Load(ctx, tok)
			if err != nil {
				return fmt.Errorf("loading session: %w", err)
			}

			userID := sm.GetString(sctx, userIDKey)
			if userID == "" {
				if !required {
					return handler(ctx, w, r)
				}
				return errs.New(errs.Unauthorized, "session expired or invalid")
			}

			sctx = claims.Set(sctx, claims.Claims{
				UserID: userID,
				Role:   sm.GetString(sctx, roleKey),
			})
			return handler(sctx, w, r.WithContext(sctx))
		}
		return h
	}
	return m
}

// Require lets through only actors for which allow returns true. It must
// run after Authenticate.
func Require(allow func(claims.Claims) bool, msg string) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			clm, err := claims.Get(ctx)
			if err != nil {
				return err
			}
			if !allow(clm) {
				return errs.New(errs.Forbidden, msg)
			}
			return handler(ctx, w, r)
		}
		return h
	}
	return m
}

func Admin() web.Middleware {
	return Require(claims.Claims.IsAdmin, "admin role required")
}

func Author() web.Middleware {
	return Require(claims.Claims.CanAuthor, "instructor or admin role required")
}
