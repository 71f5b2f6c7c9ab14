package subscription

import (
	"context"
	"net/http"

	"github.com/irsalhamdi/e-learning/api/web"
	"github.com/irsalhamdi/e-learning/core/claims"
	"github.com/irsalhamdi/e-learning/errs"
	"github.com/irsalhamdi/e-learning/page"
	"github.com/irsalhamdi/e-learning/validate"
	"github.com/jmoiron/sqlx"
)

// HandleList lists subscriptions. Admins see everyone's and may filter by
// user, everyone else only sees their own.
func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return err
		}

		p, err := page.Parse(r)
		if err != nil {
			return err
		}

		f := Filter{
			UserID: r.URL.Query().Get("user"),
			Status: Status(r.URL.Query().Get("status")),
		}
		if !clm.IsAdmin() {
			f.UserID = clm.UserID
		}
		if f.Status != "" && f.Status != StatusPending && f.Status != StatusCompleted {
			return errs.Newf(errs.Validation, "unknown status %q", f.Status)
		}

		vs, total, err := List(ctx, db, f, p)
		if err != nil {
			return err
		}
		return web.Respond(ctx, w, page.NewResponse(vs, total, p), http.StatusOK)
	}
}

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return err
		}

		clm, err := claims.Get(ctx)
		if err != nil {
			return err
		}

		s, err := Fetch(ctx, db, id)
		if err != nil {
			return err
		}
		if !clm.Owns(s.UserID) {
			return errs.New(errs.Unauthorized, "subscription belongs to another user")
		}

		return web.Respond(ctx, w, s, http.StatusOK)
	}
}

// HandleDelete deletes one of the caller's own pending subscriptions.
func HandleDelete(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return err
		}

		clm, err := claims.Get(ctx)
		if err != nil {
			return err
		}

		if err := Delete(ctx, db, id, clm.UserID); err != nil {
			return err
		}
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}
