package lesson

import (
	"context"
	"net/http"
	"time"

	"github.com/irsalhamdi/e-learning/api/web"
	"github.com/irsalhamdi/e-learning/core/academy"
	"github.com/irsalhamdi/e-learning/core/claims"
	"github.com/irsalhamdi/e-learning/core/course"
	"github.com/irsalhamdi/e-learning/core/product"
	"github.com/irsalhamdi/e-learning/core/subscription"
	"github.com/irsalhamdi/e-learning/database"
	"github.com/irsalhamdi/e-learning/errs"
	"github.com/irsalhamdi/e-learning/validate"
	"github.com/jmoiron/sqlx"
)

func HandleCreate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var ln LessonNew
		if err := web.Decode(w, r, &ln); err != nil {
			return err
		}

		if _, err := ownedCourse(ctx, db, ln.CourseID); err != nil {
			return err
		}

		now := time.Now().UTC()
		l := Lesson{
			ID:          validate.GenerateID(),
			CourseID:    ln.CourseID,
			Index:       ln.Index,
			Name:        ln.Name,
			Description: ln.Description,
			Free:        ln.Free,
			URL:         ln.URL,
			Duration:    ln.Duration,
			CreatedAt:   now,
			UpdatedAt:   now,
			Version:     1,
		}

		f := func(tx sqlx.ExtContext) error {
			if err := Create(ctx, tx, l); err != nil {
				return err
			}
			return recompute(ctx, tx, l.CourseID)
		}
		if err := database.Transaction(ctx, db, f); err != nil {
			return err
		}

		return web.Respond(ctx, w, Full{Lesson: l, URL: l.URL}, http.StatusCreated)
	}
}

func HandleUpdate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return err
		}

		var lu LessonUp
		if err := web.Decode(w, r, &lu); err != nil {
			return err
		}

		l, err := Fetch(ctx, db, id)
		if err != nil {
			return err
		}
		if _, err := ownedCourse(ctx, db, l.CourseID); err != nil {
			return err
		}

		if lu.Index != nil {
			l.Index = *lu.Index
		}
		if lu.Name != nil {
			l.Name = *lu.Name
		}
		if lu.Description != nil {
			l.Description = *lu.Description
		}
		if lu.Free != nil {
			l.Free = *lu.Free
		}
		if lu.URL != nil {
			l.URL = *lu.URL
		}
		if lu.Duration != nil {
			l.Duration = *lu.Duration
		}
		l.UpdatedAt = time.Now().UTC()

		f := func(tx sqlx.ExtContext) error {
			if err := Update(ctx, tx, l); err != nil {
				return err
			}
			return recompute(ctx, tx, l.CourseID)
		}
		if err := database.Transaction(ctx, db, f); err != nil {
			return err
		}

		l.Version++
		return web.Respond(ctx, w, Full{Lesson: l, URL: l.URL}, http.StatusOK)
	}
}

func HandleDelete(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return err
		}

		l, err := Fetch(ctx, db, id)
		if err != nil {
			return err
		}
		if _, err := ownedCourse(ctx, db, l.CourseID); err != nil {
			return err
		}

		f := func(tx sqlx.ExtContext) error {
			if err := Delete(ctx, tx, id); err != nil {
				return err
			}
			return recompute(ctx, tx, l.CourseID)
		}
		if err := database.Transaction(ctx, db, f); err != nil {
			return err
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return err
		}

		l, err := Fetch(ctx, db, id)
		if err != nil {
			return err
		}
		return web.Respond(ctx, w, l, http.StatusOK)
	}
}

// HandleShowFull returns the lesson with its content url to callers that
// may watch it: free lessons, the course owner, admins and subscribers.
func HandleShowFull(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return err
		}

		clm, err := claims.Get(ctx)
		if err != nil {
			return err
		}

		l, err := Fetch(ctx, db, id)
		if err != nil {
			return err
		}

		if !l.Free {
			c, err := course.Fetch(ctx, db, l.CourseID)
			if err != nil {
				return err
			}

			if !clm.Owns(c.InstructorID) {
				ok, err := subscription.HasAccess(ctx, db, clm.UserID, product.Course(c.ID), time.Now().UTC())
				if err != nil {
					return err
				}
				if !ok {
					return errs.New(errs.Forbidden, "an active subscription is required to watch this lesson")
				}
			}
		}

		return web.Respond(ctx, w, Full{Lesson: l, URL: l.URL}, http.StatusOK)
	}
}

func HandleListByCourse(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return err
		}

		if _, err := course.Fetch(ctx, db, id); err != nil {
			return err
		}

		ls, err := ListByCourse(ctx, db, id)
		if err != nil {
			return err
		}
		return web.Respond(ctx, w, ls, http.StatusOK)
	}
}

func ownedCourse(ctx context.Context, db sqlx.ExtContext, courseID string) (course.Course, error) {
	clm, err := claims.Get(ctx)
	if err != nil {
		return course.Course{}, err
	}

	c, err := course.Fetch(ctx, db, courseID)
	if err != nil {
		return course.Course{}, err
	}
	if !clm.Owns(c.InstructorID) {
		return course.Course{}, errs.New(errs.Forbidden, "only the instructor or an admin can change this course")
	}
	return c, nil
}

// recompute propagates a lesson change to the course and academy durations.
func recompute(ctx context.Context, tx sqlx.ExtContext, courseID string) error {
	if err := course.RecomputeDuration(ctx, tx, courseID); err != nil {
		return err
	}
	return academy.RecomputeForCourse(ctx, tx, courseID)
}
