package order

import (
	"context"
	"net/http"
	"time"

	"github.com/irsalhamdi/e-learning/api/web"
	"github.com/irsalhamdi/e-learning/core/claims"
	"github.com/irsalhamdi/e-learning/page"
	"github.com/irsalhamdi/e-learning/validate"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

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

		o, err := FetchFor(ctx, db, id, clm)
		if err != nil {
			return err
		}
		return web.Respond(ctx, w, o, http.StatusOK)
	}
}

// HandleList lists every order for admins and the caller's own otherwise.
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

		var (
			ords  []Order
			total int
		)
		if clm.IsAdmin() {
			ords, total, err = List(ctx, db, p)
		} else {
			ords, total, err = ListUser(ctx, db, clm.UserID, p)
		}
		if err != nil {
			return err
		}
		return web.Respond(ctx, w, page.NewResponse(ords, total, p), http.StatusOK)
	}
}

// HandleCreate records an order by hand, for payments settled outside the
// processors.
func HandleCreate(db *sqlx.DB, log logrus.FieldLogger) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var on OrderNew
		if err := web.Decode(w, r, &on); err != nil {
			return err
		}

		o, err := Create(ctx, db, log, on, time.Now().UTC())
		if err != nil {
			return err
		}
		return web.Respond(ctx, w, o, http.StatusCreated)
	}
}
