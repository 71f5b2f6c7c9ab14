package academy

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/irsalhamdi/e-learning/api/web"
	"github.com/irsalhamdi/e-learning/core/claims"
	"github.com/irsalhamdi/e-learning/core/course"
	"github.com/irsalhamdi/e-learning/database"
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

		var an AcademyNew
		if err := web.Decode(w, r, &an); err != nil {
			return err
		}
		if err := course.CheckPrice(an.Price); err != nil {
			return err
		}

		now := time.Now().UTC()
		a := Academy{
			ID:           validate.GenerateID(),
			InstructorID: clm.UserID,
			Name:         an.Name,
			Description:  an.Description,
			ImageURL:     an.ImageURL,
			Price:        an.Price,
			Validity:     an.Validity,
			Approved:     clm.IsAdmin(),
			CreatedAt:    now,
			UpdatedAt:    now,
			Version:      1,
		}

		f := func(tx sqlx.ExtContext) error {
			if err := Create(ctx, tx, a); err != nil {
				return err
			}
			for _, id := range an.CourseIDs {
				if err := AddCourse(ctx, tx, a.ID, id); err != nil {
					return err
				}
			}
			return nil
		}
		if err := database.Transaction(ctx, db, f); err != nil {
			return fmt.Errorf("creating academy: %w", err)
		}

		d, err := detail(ctx, db, a.ID)
		if err != nil {
			return err
		}
		return web.Respond(ctx, w, d, http.StatusCreated)
	}
}

func HandleUpdate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		a, err := owned(ctx, db, web.Param(r, "id"))
		if err != nil {
			return err
		}

		var au AcademyUp
		if err := web.Decode(w, r, &au); err != nil {
			return err
		}

		if au.Name != nil {
			a.Name = *au.Name
		}
		if au.Description != nil {
			a.Description = *au.Description
		}
		if au.ImageURL != nil {
			a.ImageURL = *au.ImageURL
		}
		if au.Price != nil {
			if err := course.CheckPrice(*au.Price); err != nil {
				return err
			}
			a.Price = *au.Price
		}
		if au.Validity != nil {
			a.Validity = *au.Validity
		}
		a.UpdatedAt = time.Now().UTC()

		if err := Update(ctx, db, a); err != nil {
			return err
		}

		d, err := detail(ctx, db, a.ID)
		if err != nil {
			return err
		}
		return web.Respond(ctx, w, d, http.StatusOK)
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
			return web.RespondMessage(ctx, w, "academy already approved", http.StatusOK)
		}
		return web.RespondMessage(ctx, w, "academy approved", http.StatusOK)
	}
}

func HandleAddCourse(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		a, err := owned(ctx, db, web.Param(r, "id"))
		if err != nil {
			return err
		}

		var ca CourseAdd
		if err := web.Decode(w, r, &ca); err != nil {
			return err
		}

		if err := AddCourse(ctx, db, a.ID, ca.CourseID); err != nil {
			return err
		}

		d, err := detail(ctx, db, a.ID)
		if err != nil {
			return err
		}
		return web.Respond(ctx, w, d, http.StatusOK)
	}
}

func HandleRemoveCourse(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		a, err := owned(ctx, db, web.Param(r, "id"))
		if err != nil {
			return err
		}

		courseID := web.Param(r, "course_id")
		if err := validate.CheckID(courseID); err != nil {
			return err
		}

		if err := RemoveCourse(ctx, db, a.ID, courseID); err != nil {
			return err
		}

		d, err := detail(ctx, db, a.ID)
		if err != nil {
			return err
		}
		return web.Respond(ctx, w, d, http.StatusOK)
	}
}

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return err
		}

		d, err := detail(ctx, db, id)
		if err != nil {
			return err
		}
		if !d.Approved {
			clm, err := claims.Get(ctx)
			if err != nil || !clm.Owns(d.InstructorID) {
				return errs.Newf(errs.NotFound, "academy[%s] not found", id)
			}
		}

		return web.Respond(ctx, w, d, http.StatusOK)
	}
}

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		p, err := page.Parse(r)
		if err != nil {
			return err
		}

		as, total, err := List(ctx, db, true, p)
		if err != nil {
			return err
		}
		return web.Respond(ctx, w, page.NewResponse(as, total, p), http.StatusOK)
	}
}

func owned(ctx context.Context, db sqlx.ExtContext, id string) (Academy, error) {
	if err := validate.CheckID(id); err != nil {
		return Academy{}, err
	}

	clm, err := claims.Get(ctx)
	if err != nil {
		return Academy{}, err
	}

	a, err := Fetch(ctx, db, id)
	if err != nil {
		return Academy{}, err
	}
	if !clm.Owns(a.InstructorID) {
		return Academy{}, errs.New(errs.Forbidden, "only the instructor or an admin can change this academy")
	}
	return a, nil
}

func detail(ctx context.Context, db sqlx.ExtContext, id string) (Detail, error) {
	a, err := Fetch(ctx, db, id)
	if err != nil {
		return Detail{}, err
	}

	cs, err := course.ListByAcademy(ctx, db, id)
	if err != nil {
		return Detail{}, err
	}
	return Detail{Academy: a, Courses: cs}, nil
}
