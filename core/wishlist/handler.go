package wishlist

import (
	"context"
	"net/http"
	"time"

	"github.com/irsalhamdi/e-learning/api/web"
	"github.com/irsalhamdi/e-learning/core/claims"
	"github.com/irsalhamdi/e-learning/core/product"
	"github.com/irsalhamdi/e-learning/validate"
	"github.com/jmoiron/sqlx"
)

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return err
		}

		items, err := List(ctx, db, clm.UserID)
		if err != nil {
			return err
		}
		return web.Respond(ctx, w, items, http.StatusOK)
	}
}

func HandleAdd(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return err
		}

		var in ItemNew
		if err := web.Decode(w, r, &in); err != nil {
			return err
		}

		if err := Add(ctx, db, clm.UserID, in.Product, time.Now().UTC()); err != nil {
			return err
		}

		items, err := List(ctx, db, clm.UserID)
		if err != nil {
			return err
		}
		return web.Respond(ctx, w, items, http.StatusOK)
	}
}

// HandleRemove drops the product named in the path from the wishlist.
func HandleRemove(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return err
		}

		ref := product.Ref{Kind: product.Kind(web.Param(r, "type")), ID: web.Param(r, "id")}
		if err := validate.Check(ref); err != nil {
			return err
		}

		if err := Remove(ctx, db, clm.UserID, ref); err != nil {
			return err
		}
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}
