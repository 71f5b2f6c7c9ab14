package wishlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/irsalhamdi/e-learning/core/product"
	"github.com/irsalhamdi/e-learning/database"
	"github.com/irsalhamdi/e-learning/errs"
	"github.com/jmoiron/sqlx"
)

// Add puts the product on the user's wishlist. Adding it twice is a no-op.
func Add(ctx context.Context, db sqlx.ExtContext, userID string, ref product.Ref, now time.Time) error {
	const q = `
	INSERT INTO wishlist_items (user_id, course_id, academy_id, created_at)
	VALUES (:user_id, :course_id, :academy_id, :created_at)
	ON CONFLICT DO NOTHING`

	cols := ref.Columns()
	args := database.Args{"user_id": userID, "course_id": cols.CourseID, "academy_id": cols.AcademyID, "created_at": now}
	if err := database.NamedExecContext(ctx, db, q, args); err != nil {
		if errors.Is(err, database.ErrDBMissingRef) {
			return errs.Newf(errs.NotFound, "%s not found", ref)
		}
		return fmt.Errorf("adding %s to wishlist of user[%s]: %w", ref, userID, err)
	}
	return nil
}

func Remove(ctx context.Context, db sqlx.ExtContext, userID string, ref product.Ref) error {
	const q = `
	DELETE FROM wishlist_items
	WHERE user_id = :user_id AND (course_id = :course_id OR academy_id = :academy_id)`

	cols := ref.Columns()
	args := database.Args{"user_id": userID, "course_id": cols.CourseID, "academy_id": cols.AcademyID}
	n, err := database.NamedExecContextRows(ctx, db, q, args)
	if err != nil {
		return fmt.Errorf("removing %s from wishlist of user[%s]: %w", ref, userID, err)
	}
	if n == 0 {
		return errs.Newf(errs.NotFound, "%s is not on the wishlist", ref)
	}
	return nil
}

// List returns the user's wishlist with the display fields of each product.
func List(ctx context.Context, db sqlx.ExtContext, userID string) ([]Item, error) {
	const q = `
	SELECT w.user_id, w.course_id, w.academy_id, w.created_at,
		COALESCE(c.name, a.name) AS name,
		COALESCE(c.image_url, a.image_url) AS image_url,
		COALESCE(c.price, a.price) AS price
	FROM wishlist_items w
	LEFT JOIN courses c ON c.course_id = w.course_id
	LEFT JOIN academies a ON a.academy_id = w.academy_id
	WHERE w.user_id = :user_id
	ORDER BY w.created_at DESC`

	var items []Item
	if err := database.NamedQuerySlice(ctx, db, q, database.Args{"user_id": userID}, &items); err != nil {
		return nil, fmt.Errorf("selecting wishlist of user[%s]: %w", userID, err)
	}

	for i := range items {
		ref, err := items[i].Columns.Ref()
		if err != nil {
			return nil, err
		}
		items[i].Product = ref
	}
	return items, nil
}
