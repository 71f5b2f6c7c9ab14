package token

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/irsalhamdi/e-learning/api/background"
	"github.com/irsalhamdi/e-learning/api/web"
	"github.com/irsalhamdi/e-learning/core/auth"
	"github.com/irsalhamdi/e-learning/core/user"
	"github.com/irsalhamdi/e-learning/database"
	"github.com/irsalhamdi/e-learning/errs"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// HandleToken emails a fresh token. It answers the same way whether or not
// the email belongs to an account.
func HandleToken(db *sqlx.DB, mailer Mailer, ttl time.Duration, bg *background.Background, log logrus.FieldLogger) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var tn TokenNew
		if err := web.Decode(w, r, &tn); err != nil {
			return err
		}

		resp := web.Message{Status: "success", Message: "if the account exists an email has been sent"}

		usr, err := user.FetchByEmail(ctx, db, tn.Email)
		if errs.Is(err, errs.NotFound) {
			return web.Respond(ctx, w, resp, http.StatusAccepted)
		}
		if err != nil {
			return fmt.Errorf("fetching token owner: %w", err)
		}

		if tn.Scope == ScopeActivation && usr.Active {
			return web.RespondMessage(ctx, w, "account already activated", http.StatusOK)
		}

		tkn, err := Generate(usr.ID, ttl, tn.Scope)
		if err != nil {
			return fmt.Errorf("generating token: %w", err)
		}
		if err := Create(ctx, db, tkn); err != nil {
			return err
		}

		bg.Add(func() {
			send := mailer.SendRecoveryToken
			if tn.Scope == ScopeActivation {
				send = mailer.SendActivationToken
			}
			if err := send(usr.Email, tkn.Plaintext); err != nil {
				log.WithField("user_id", usr.ID).WithError(err).Error("sending token email")
			}
		})

		return web.Respond(ctx, w, resp, http.StatusAccepted)
	}
}

// HandleActivation activates the account and logs the user in.
func HandleActivation(db *sqlx.DB, sm *scs.SessionManager) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var ta TokenActivation
		if err := web.Decode(w, r, &ta); err != nil {
			return err
		}

		var usr user.User
		err := database.Transaction(ctx, db, func(tx sqlx.ExtContext) error {
			var err error
			usr, err = FetchUser(ctx, tx, ta.Token, ScopeActivation)
			if err != nil {
				return err
			}

			usr.Active = true
			usr.UpdatedAt = time.Now().UTC()
			if err := user.Update(ctx, tx, usr); err != nil {
				return err
			}
			usr.Version++

			return DeleteAll(ctx, tx, usr.ID, ScopeActivation)
		})
		if err != nil {
			return fmt.Errorf("activating account: %w", err)
		}

		tok, err := auth.Login(ctx, sm, usr)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, tok, http.StatusOK)
	}
}

func HandleRecovery(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var tr TokenRecovery
		if err := web.Decode(w, r, &tr); err != nil {
			return err
		}

		hash, err := user.HashPassword(tr.Password)
		if err != nil {
			return err
		}

		err = database.Transaction(ctx, db, func(tx sqlx.ExtContext) error {
			usr, err := FetchUser(ctx, tx, tr.Token, ScopeRecovery)
			if err != nil {
				return err
			}

			usr.PasswordHash = hash
			usr.UpdatedAt = time.Now().UTC()
			if err := user.Update(ctx, tx, usr); err != nil {
				return err
			}

			return DeleteAll(ctx, tx, usr.ID, ScopeRecovery)
		})
		if err != nil {
			return fmt.Errorf("recovering account: %w", err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}
