package promo

import (
	"context"
	"net/http"
	"time"

	"github.com/irsalhamdi/e-learning/api/web"
	"github.com/irsalhamdi/e-learning/core/claims"
	"github.com/irsalhamdi/e-learning/errs"
	"github.com/irsalhamdi/e-learning/page"
	"github.com/irsalhamdi/e-learning/validate"
	"github.com/jmoiron/sqlx"
)

func HandleCreate(db *sqlx.DB, maxInstructorPercentage int) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return err
		}

		var pn PromoNew
		if err := web.Decode(w, r, &pn); err != nil {
			return err
		}

		p, err := Create(ctx, db, pn, clm.UserID, maxInstructorPercentage, time.Now().UTC())
		if err != nil {
			return err
		}
		return web.Respond(ctx, w, p, http.StatusCreated)
	}
}

func HandleValidate(db *sqlx.DB) web.Handler {
	return handleToggle(db, true, "promo validated", "promo already validated")
}

func HandleInvalidate(db *sqlx.DB) web.Handler {
	return handleToggle(db, false, "promo invalidated", "promo already invalidated")
}

func handleToggle(db *sqlx.DB, validated bool, done, already string) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return err
		}

		changed, err := SetValidated(ctx, db, id, validated, time.Now().UTC())
		if err != nil {
			return err
		}
		if !changed {
			return web.RespondMessage(ctx, w, already, http.StatusOK)
		}
		return web.RespondMessage(ctx, w, done, http.StatusOK)
	}
}

// HandleShow returns a promo to its author or an admin.
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

		p, err := Fetch(ctx, db, id)
		if err != nil {
			return err
		}
		if !clm.Owns(p.UserID) {
			return errs.New(errs.Unauthorized, "promo belongs to another user")
		}
		return web.Respond(ctx, w, p, http.StatusOK)
	}
}

// Lookup is the public view of a promo code.
type Lookup struct {
	ID         string `json:"id"`
	Code       string `json:"code"`
	Percentage int    `json:"percentage"`
}

// HandleLookup resolves a usable promo code for buyers.
func HandleLookup(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		p, err := FetchByCode(ctx, db, web.Param(r, "code"))
		if err != nil {
			return err
		}
		if !p.Validated {
			return errs.Newf(errs.NotFound, "promo %s not found", p.Code)
		}
		return web.Respond(ctx, w, Lookup{ID: p.ID, Code: p.Code, Percentage: p.Percentage}, http.StatusOK)
	}
}

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		p, err := page.Parse(r)
		if err != nil {
			return err
		}

		ps, total, err := List(ctx, db, p)
		if err != nil {
			return err
		}
		return web.Respond(ctx, w, page.NewResponse(ps, total, p), http.StatusOK)
	}
}
