package review

import (
	"context"
	"net/http"
	"time"

	"github.com/irsalhamdi/e-learning/api/web"
	"github.com/irsalhamdi/e-learning/core/claims"
	"github.com/irsalhamdi/e-learning/core/product"
	"github.com/irsalhamdi/e-learning/errs"
	"github.com/irsalhamdi/e-learning/page"
	"github.com/irsalhamdi/e-learning/validate"
	"github.com/jmoiron/sqlx"
)

func HandleCreate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return err
		}

		var rn ReviewNew
		if err := web.Decode(w, r, &rn); err != nil {
			return err
		}

		now := time.Now().UTC()
		rv := Review{
			ID:        validate.GenerateID(),
			UserID:    clm.UserID,
			Product:   rn.Product,
			Columns:   rn.Product.Columns(),
			Rating:    rn.Rating,
			Comment:   rn.Comment,
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := Create(ctx, db, rv); err != nil {
			return err
		}
		return web.Respond(ctx, w, rv, http.StatusCreated)
	}
}

func HandleUpdate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		rv, err := own(ctx, db, web.Param(r, "id"), false)
		if err != nil {
			return err
		}

		var ru ReviewUp
		if err := web.Decode(w, r, &ru); err != nil {
			return err
		}

		if ru.Rating != nil {
			rv.Rating = *ru.Rating
		}
		if ru.Comment != nil {
			rv.Comment = *ru.Comment
		}
		rv.UpdatedAt = time.Now().UTC()

		if err := Update(ctx, db, rv); err != nil {
			return err
		}
		return web.Respond(ctx, w, rv, http.StatusOK)
	}
}

func HandleDelete(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		rv, err := own(ctx, db, web.Param(r, "id"), true)
		if err != nil {
			return err
		}

		if err := Delete(ctx, db, rv); err != nil {
			return err
		}
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

// HandleList lists the reviews of the product named by the productType and
// productId query parameters.
func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		ref := product.Ref{
			Kind: product.Kind(r.URL.Query().Get("productType")),
			ID:   r.URL.Query().Get("productId"),
		}
		if err := validate.Check(ref); err != nil {
			return err
		}

		p, err := page.Parse(r)
		if err != nil {
			return err
		}

		rvs, total, err := ListByProduct(ctx, db, ref, p)
		if err != nil {
			return err
		}
		return web.Respond(ctx, w, page.NewResponse(rvs, total, p), http.StatusOK)
	}
}

// own fetches a review the caller wrote. Admins pass when adminOK is set.
func own(ctx context.Context, db sqlx.ExtContext, id string, adminOK bool) (Review, error) {
	if err := validate.CheckID(id); err != nil {
		return Review{}, err
	}

	clm, err := claims.Get(ctx)
	if err != nil {
		return Review{}, err
	}

	rv, err := Fetch(ctx, db, id)
	if err != nil {
		return Review{}, err
	}
	if rv.UserID != clm.UserID && !(adminOK && clm.IsAdmin()) {
		return Review{}, errs.New(errs.Forbidden, "review belongs to another user")
	}
	return rv, nil
}
