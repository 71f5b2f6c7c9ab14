package course

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/irsalhamdi/e-learning/api/web"
	"github.com/irsalhamdi/e-learning/core/claims"
	"github.com/irsalhamdi/e-learning/errs"
	"github.com/irsalhamdi/e-learning/page"
	"github.com/irsalhamdi/e-learning/validate"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// maxPrice bounds catalog prices, in dollars.
var maxPrice = decimal.NewFromInt(10000)

func CheckPrice(p decimal.Decimal) error {
	if p.IsNegative() || p.GreaterThan(maxPrice) {
		return errs.New(errs.Validation, "price must be between 0 and 10000")
	}
	if !p.Equal(p.Round(2)) {
		return errs.New(errs.Validation, "price must have at most two decimals")
	}
	return nil
}

func HandleCreate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return err
		}

		var cn CourseNew
		if err := web.Decode(w, r, &cn); err != nil {
			return err
		}
		if err := CheckPrice(cn.Price); err != nil {
			return err
		}

		now := time.Now().UTC()
		c := Course{
			ID:           validate.GenerateID(),
			InstructorID: clm.UserID,
			Name:         cn.Name,
			Description:  cn.Description,
			ImageURL:     cn.ImageURL,
			Price:        cn.Price,
			Validity:     cn.Validity,
			Approved:     clm.IsAdmin(),
			Tags:         cn.Tags,
			CreatedAt:    now,
			UpdatedAt:    now,
			Version:      1,
		}

		if err := Create(ctx, db, c); err != nil {
			return fmt.Errorf("creating course: %w", err)
		}

		c, err = Fetch(ctx, db, c.ID)
		if err != nil {
			return err
		}
		return web.Respond(ctx, w, c, http.StatusCreated)
	}
}

func HandleUpdate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return err
		}

		clm, err := claims.Get(ctx)
		if err != nil {
			return err
		}

		var cu CourseUp
		if err := web.Decode(w, r, &cu); err != nil {
			return err
		}

		c, err := Fetch(ctx, db, id)
		if err != nil {
			return err
		}
		if !clm.Owns(c.InstructorID) {
			return errs.New(errs.Forbidden, "only the instructor or an admin can update this course")
		}

		if cu.Name != nil {
			c.Name = *cu.Name
		}
		if cu.Description != nil {
			c.Description = *cu.Description
		}
		if cu.ImageURL != nil {
			c.ImageURL = *cu.ImageURL
		}
		if cu.Price != nil {
			if err := CheckPrice(*cu.Price); err != nil {
				return err
			}
			c.Price = *cu.Price
		}
		if cu.Validity != nil {
			c.Validity = *cu.Validity
		}
		c.Tags = cu.Tags
		c.UpdatedAt = time.Now().UTC()

		if err := Update(ctx, db, c); err != nil {
			return err
		}

		c, err = Fetch(ctx, db, id)
		if err != nil {
			return err
		}
		return web.Respond(ctx, w, c, http.StatusOK)
	}
}

func HandleApprove(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return err
		}

		changed, err := Approve(ctx, db, id)
		if err != nil {
			return err
		}
		if !changed {
			return web.RespondMessage(ctx, w, "course already approved", http.StatusOK)
		}
		return web.RespondMessage(ctx, w, "course approved", http.StatusOK)
	}
}

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return err
		}

		c, err := Fetch(ctx, db, id)
		if err != nil {
			return err
		}
		if !c.Approved {
			return errs.Newf(errs.NotFound, "course[%s] not found", id)
		}

		return web.Respond(ctx, w, c, http.StatusOK)
	}
}

// HandleList lists approved courses, optionally filtered by tag.
func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		p, err := page.Parse(r)
		if err != nil {
			return err
		}

		approved := true
		f := Filter{
			Name:         r.URL.Query().Get("q"),
			Tag:          r.URL.Query().Get("tag"),
			InstructorID: r.URL.Query().Get("instructor"),
			Approved:     &approved,
		}

		cs, total, err := List(ctx, db, f, p)
		if err != nil {
			return err
		}
		return web.Respond(ctx, w, page.NewResponse(cs, total, p), http.StatusOK)
	}
}

// HandleListPending lists courses waiting for approval, for admins.
func HandleListPending(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		p, err := page.Parse(r)
		if err != nil {
			return err
		}

		approved := false
		cs, total, err := List(ctx, db, Filter{Approved: &approved}, p)
		if err != nil {
			return err
		}
		return web.Respond(ctx, w, page.NewResponse(cs, total, p), http.StatusOK)
	}
}

func HandleListOwned(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return err
		}

		cs, err := ListOwned(ctx, db, clm.UserID)
		if err != nil {
			return err
		}
		return web.Respond(ctx, w, cs, http.StatusOK)
	}
}
