package review

import (
	"context"
	"errors"
	"fmt"

	"github.com/irsalhamdi/e-learning/core/product"
	"github.com/irsalhamdi/e-learning/database"
	"github.com/irsalhamdi/e-learning/errs"
	"github.com/irsalhamdi/e-learning/page"
	"github.com/jmoiron/sqlx"
)

const reviewColumns = `review_id, user_id, course_id, academy_id, rating, comment, created_at, updated_at`

// Create inserts the review and refreshes the product rating.
func Create(ctx context.Context, db *sqlx.DB, rv Review) error {
	const q = `
	INSERT INTO reviews
		(review_id, user_id, course_id, academy_id, rating, comment, created_at, updated_at)
	VALUES
		(:review_id, :user_id, :course_id, :academy_id, :rating, :comment, :created_at, :updated_at)`

	f := func(tx sqlx.ExtContext) error {
		if _, err := product.Fetch(ctx, tx, rv.Product); err != nil {
			return err
		}

		if err := database.NamedExecContext(ctx, tx, q, rv); err != nil {
			if errors.Is(err, database.ErrDBDuplicatedEntry) {
				return errs.Newf(errs.Conflict, "%s already reviewed by this user", rv.Product)
			}
			return fmt.Errorf("inserting review: %w", err)
		}
		return product.RecomputeRating(ctx, tx, rv.Product)
	}

	return database.Transaction(ctx, db, f)
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (Review, error) {
	q := `SELECT ` + reviewColumns + ` FROM reviews WHERE review_id = :review_id`

	var rv Review
	if err := database.NamedQueryStruct(ctx, db, q, database.Args{"review_id": id}, &rv); err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return Review{}, errs.Newf(errs.NotFound, "review[%s] not found", id)
		}
		return Review{}, fmt.Errorf("selecting review[%s]: %w", id, err)
	}
	return resolve(rv)
}

func Update(ctx context.Context, db *sqlx.DB, rv Review) error {
	const q = `
	UPDATE reviews SET
		rating = :rating,
		comment = :comment,
		updated_at = :updated_at
	WHERE review_id = :review_id`

	f := func(tx sqlx.ExtContext) error {
		n, err := database.NamedExecContextRows(ctx, tx, q, rv)
		if err != nil {
			return fmt.Errorf("updating review[%s]: %w", rv.ID, err)
		}
		if n == 0 {
			return errs.Newf(errs.NotFound, "review[%s] not found", rv.ID)
		}
		return product.RecomputeRating(ctx, tx, rv.Product)
	}

	return database.Transaction(ctx, db, f)
}

func Delete(ctx context.Context, db *sqlx.DB, rv Review) error {
	const q = `DELETE FROM reviews WHERE review_id = :review_id`

	f := func(tx sqlx.ExtContext) error {
		n, err := database.NamedExecContextRows(ctx, tx, q, database.Args{"review_id": rv.ID})
		if err != nil {
			return fmt.Errorf("deleting review[%s]: %w", rv.ID, err)
		}
		if n == 0 {
			return errs.Newf(errs.NotFound, "review[%s] not found", rv.ID)
		}
		return product.RecomputeRating(ctx, tx, rv.Product)
	}

	return database.Transaction(ctx, db, f)
}

// ListByProduct returns a page of the reviews of ref, newest first.
func ListByProduct(ctx context.Context, db sqlx.ExtContext, ref product.Ref, p page.Page) ([]Review, int, error) {
	cols := ref.Columns()
	args := database.Args{"course_id": cols.CourseID, "academy_id": cols.AcademyID}
	w := ` WHERE (course_id = :course_id OR academy_id = :academy_id)`

	var total int
	if err := database.NamedQueryScalar(ctx, db, `SELECT COUNT(*) FROM reviews`+w, args, &total); err != nil {
		return nil, 0, fmt.Errorf("counting reviews of %s: %w", ref, err)
	}

	args["limit"] = p.Size
	args["offset"] = p.Offset()
	q := `SELECT ` + reviewColumns + ` FROM reviews` + w + ` ORDER BY created_at DESC, review_id LIMIT :limit OFFSET :offset`

	var rvs []Review
	if err := database.NamedQuerySlice(ctx, db, q, args, &rvs); err != nil {
		return nil, 0, fmt.Errorf("selecting reviews of %s: %w", ref, err)
	}

	for i := range rvs {
		var err error
		if rvs[i], err = resolve(rvs[i]); err != nil {
			return nil, 0, err
		}
	}
	return rvs, total, nil
}

func resolve(rv Review) (Review, error) {
	ref, err := rv.Columns.Ref()
	if err != nil {
		return Review{}, fmt.Errorf("review[%s]: %w", rv.ID, err)
	}
	rv.Product = ref
	return rv, nil
}
