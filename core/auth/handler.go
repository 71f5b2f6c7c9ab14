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
	"github.com/irsalhamdi/e-learning/validate"
	"github.com/jmoiron/sqlx"
)

// HandleSignup registers a user with the "user" role. When activation is
// not required the account is active right away and a session is returned.
func HandleSignup(db *sqlx.DB, sm *scs.SessionManager, activationRequired bool) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var su user.UserSignup
		if err := web.Decode(w, r, &su); err != nil {
			return err
		}

		hash, err := user.HashPassword(su.Password)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		usr := user.User{
			ID:           validate.GenerateID(),
			Name:         su.Name,
			Email:        su.Email,
			Role:         claims.RoleUser,
			PasswordHash: hash,
			Active:       !activationRequired,
			CreatedAt:    now,
			UpdatedAt:    now,
			Version:      1,
		}

		if err := user.Create(ctx, db, usr); err != nil {
			return fmt.Errorf("signing up: %w", err)
		}

		if activationRequired {
			return web.Respond(ctx, w, usr, http.StatusCreated)
		}

		tok, err := Login(ctx, sm, usr)
		if err != nil {
			return err
		}

		resp := struct {
			User  user.User `json:"user"`
			Token Token     `json:"session"`
		}{usr, tok}
		return web.Respond(ctx, w, resp, http.StatusCreated)
	}
}

func HandleLogin(db *sqlx.DB, sm *scs.SessionManager, activationRequired bool) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var ul user.UserLogin
		if err := web.Decode(w, r, &ul); err != nil {
			return err
		}

		usr, err := user.Authenticate(ctx, db, ul.Email, ul.Password)
		if err != nil {
			return err
		}

		if activationRequired && !usr.Active {
			return errs.New(errs.Forbidden, "account not activated")
		}

		tok, err := Login(ctx, sm, usr)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, tok, http.StatusOK)
	}
}

// HandleLogout must run behind Authenticate so the session is loaded.
func HandleLogout(sm *scs.SessionManager) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		if err := sm.Destroy(ctx); err != nil {
			return fmt.Errorf("destroying session: %w", err)
		}
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}
