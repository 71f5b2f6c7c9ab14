package subscription

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/irsalhamdi/e-learning/core/product"
	"github.com/irsalhamdi/e-learning/core/user"
	"github.com/irsalhamdi/e-learning/database"
	"github.com/irsalhamdi/e-learning/errs"
	"github.com/irsalhamdi/e-learning/page"
	"github.com/irsalhamdi/e-learning/validate"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const subscriptionColumns = `s.subscription_id, s.user_id, s.course_id, s.academy_id, s.status, s.payment_frequency,
	s.amount, s.expires_at, s.order_id, s.created_at, s.updated_at`

// Create inserts one Pending subscription per product of b and records them
// on the user, all in one transaction. A single missing product fails the
// whole batch.
func Create(ctx context.Context, db *sqlx.DB, b Batch, now time.Time) ([]Subscription, error) {
	if !b.Frequency.Valid() {
		return nil, errs.Newf(errs.Validation, "unknown payment frequency %q", b.Frequency)
	}
	if len(b.Products) == 0 {
		return nil, errs.New(errs.Validation, "at least one product is required")
	}

	expires, err := Expiry(b.Frequency, now)
	if err != nil {
		return nil, err
	}

	var subs []Subscription
	f := func(tx sqlx.ExtContext) error {
		prods, err := product.FetchAll(ctx, tx, b.Products)
		if err != nil {
			return err
		}

		subs = make([]Subscription, len(prods))
		ids := make([]string, len(prods))
		for i, p := range prods {
			if !p.Approved {
				return errs.Newf(errs.Validation, "%s is not available for purchase", p.Ref)
			}

			subs[i] = Subscription{
				ID:        validate.GenerateID(),
				UserID:    b.UserID,
				Product:   p.Ref,
				Columns:   p.Ref.Columns(),
				Status:    StatusPending,
				Frequency: b.Frequency,
				Amount:    p.Price,
				ExpiresAt: expires,
				OrderID:   b.OrderID,
				CreatedAt: now,
				UpdatedAt: now,
			}
			ids[i] = subs[i].ID

			if err := insert(ctx, tx, subs[i]); err != nil {
				return err
			}
		}

		return user.AppendSubscriptions(ctx, tx, b.UserID, ids)
	}

	if err := database.Transaction(ctx, db, f); err != nil {
		return nil, err
	}
	return subs, nil
}

func insert(ctx context.Context, db sqlx.ExtContext, s Subscription) error {
	const q = `
	INSERT INTO subscriptions
		(subscription_id, user_id, course_id, academy_id, status, payment_frequency, amount, expires_at, order_id, created_at, updated_at)
	VALUES
		(:subscription_id, :user_id, :course_id, :academy_id, :status, :payment_frequency, :amount, :expires_at, :order_id, :created_at, :updated_at)`

	if err := database.NamedExecContext(ctx, db, q, s); err != nil {
		if errors.Is(err, database.ErrDBMissingRef) {
			return errs.Newf(errs.NotFound, "user[%s] not found", s.UserID)
		}
		return fmt.Errorf("inserting subscription: %w", err)
	}
	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (Subscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM subscriptions s WHERE s.subscription_id = :subscription_id`

	var s Subscription
	if err := database.NamedQueryStruct(ctx, db, q, database.Args{"subscription_id": id}, &s); err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return Subscription{}, errs.Newf(errs.NotFound, "subscription[%s] not found", id)
		}
		return Subscription{}, fmt.Errorf("selecting subscription[%s]: %w", id, err)
	}
	return resolve(s)
}

// FetchMany returns the subscriptions with the given ids. Missing ids are
// skipped.
func FetchMany(ctx context.Context, db sqlx.ExtContext, ids []string) ([]Subscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM subscriptions s WHERE s.subscription_id = ANY(:ids) ORDER BY s.created_at, s.subscription_id`

	var subs []Subscription
	if err := database.NamedQuerySlice(ctx, db, q, database.Args{"ids": pq.Array(ids)}, &subs); err != nil {
		return nil, fmt.Errorf("selecting subscriptions: %w", err)
	}

	for i := range subs {
		var err error
		if subs[i], err = resolve(subs[i]); err != nil {
			return nil, err
		}
	}
	return subs, nil
}

func resolve(s Subscription) (Subscription, error) {
	ref, err := s.Columns.Ref()
	if err != nil {
		return Subscription{}, fmt.Errorf("subscription[%s]: %w", s.ID, err)
	}
	s.Product = ref
	return s, nil
}

// Delete removes a Pending subscription owned by userID. The guard is part
// of the statement so a concurrent completion cannot be deleted.
func Delete(ctx context.Context, db *sqlx.DB, id, userID string) error {
	const q = `
	DELETE FROM subscriptions
	WHERE subscription_id = :subscription_id AND user_id = :user_id AND status = :status
	RETURNING subscription_id, user_id, course_id, academy_id`

	f := func(tx sqlx.ExtContext) error {
		var s Subscription
		args := database.Args{"subscription_id": id, "user_id": userID, "status": StatusPending}
		err := database.NamedQueryStruct(ctx, tx, q, args, &s)
		switch {
		case errors.Is(err, database.ErrDBNotFound):
			return whyNotDeleted(ctx, tx, id, userID)
		case err != nil:
			return fmt.Errorf("deleting subscription[%s]: %w", id, err)
		}

		// Keep the product on the user when another completed subscription
		// still grants it.
		courseID, academyID := s.CourseID.String, s.AcademyID.String
		held, err := holds(ctx, tx, userID, s.Columns)
		if err != nil {
			return err
		}
		if held {
			courseID, academyID = "", ""
		}

		return user.RemoveSubscription(ctx, tx, userID, id, courseID, academyID)
	}

	return database.Transaction(ctx, db, f)
}

func whyNotDeleted(ctx context.Context, db sqlx.ExtContext, id, userID string) error {
	s, err := Fetch(ctx, db, id)
	if err != nil {
		return err
	}
	if s.UserID != userID {
		return errs.New(errs.Unauthorized, "only the owner can delete this subscription")
	}
	return errs.Newf(errs.Conflict, "subscription[%s] is completed and cannot be deleted", id)
}

func holds(ctx context.Context, db sqlx.ExtContext, userID string, c product.Columns) (bool, error) {
	const q = `
	SELECT EXISTS (
		SELECT 1 FROM subscriptions
		WHERE user_id = :user_id AND status = :status
		AND (course_id = :course_id OR academy_id = :academy_id)
	)`

	var ok bool
	args := database.Args{"user_id": userID, "status": StatusCompleted, "course_id": c.CourseID, "academy_id": c.AcademyID}
	if err := database.NamedQueryScalar(ctx, db, q, args, &ok); err != nil {
		return false, fmt.Errorf("checking products held by user[%s]: %w", userID, err)
	}
	return ok, nil
}

func where(f Filter) (string, database.Args) {
	var conds []string
	args := database.Args{}

	if f.UserID != "" {
		conds = append(conds, `s.user_id = :user_id`)
		args["user_id"] = f.UserID
	}
	if f.Status != "" {
		conds = append(conds, `s.status = :status`)
		args["status"] = f.Status
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns a page of subscriptions joined with product and order.
func List(ctx context.Context, db sqlx.ExtContext, f Filter, p page.Page) ([]View, int, error) {
	w, args := where(f)

	var total int
	if err := database.NamedQueryScalar(ctx, db, `SELECT COUNT(*) FROM subscriptions s`+w, args, &total); err != nil {
		return nil, 0, fmt.Errorf("counting subscriptions: %w", err)
	}

	args["limit"] = p.Size
	args["offset"] = p.Offset()
	q := `
	SELECT ` + subscriptionColumns + `,
		COALESCE(c.name, a.name) AS product_name, o.transaction_ref, o.grand_total
	FROM subscriptions s
	LEFT JOIN courses c ON c.course_id = s.course_id
	LEFT JOIN academies a ON a.academy_id = s.academy_id
	LEFT JOIN orders o ON o.order_id = s.order_id` + w + `
	ORDER BY s.created_at DESC, s.subscription_id
	LIMIT :limit OFFSET :offset`

	var vs []View
	if err := database.NamedQuerySlice(ctx, db, q, args, &vs); err != nil {
		return nil, 0, fmt.Errorf("selecting subscriptions: %w", err)
	}

	for i := range vs {
		s, err := resolve(vs[i].Subscription)
		if err != nil {
			return nil, 0, err
		}
		vs[i].Subscription = s
	}
	return vs, total, nil
}

// ListUser is List restricted to the subscriptions of one user.
func ListUser(ctx context.Context, db sqlx.ExtContext, userID string, p page.Page) ([]View, int, error) {
	return List(ctx, db, Filter{UserID: userID}, p)
}

// Complete moves the Pending subscriptions among ids to Completed and links
// them to the order. It returns how many were moved.
func Complete(ctx context.Context, db sqlx.ExtContext, ids []string, orderID string, now time.Time) (int64, error) {
	const q = `
	UPDATE subscriptions SET
		status = :completed,
		order_id = :order_id,
		updated_at = :now
	WHERE subscription_id = ANY(:ids) AND status = :pending`

	args := database.Args{
		"completed": StatusCompleted,
		"pending":   StatusPending,
		"order_id":  orderID,
		"now":       now,
		"ids":       pq.Array(ids),
	}
	n, err := database.NamedExecContextRows(ctx, db, q, args)
	if err != nil {
		return 0, fmt.Errorf("completing subscriptions: %w", err)
	}
	return n, nil
}

// Renew extends the recurring subscriptions among ids by one period,
// counted from their current expiry or from now when already expired.
func Renew(ctx context.Context, db sqlx.ExtContext, ids []string, now time.Time) (int64, error) {
	const q = `
	UPDATE subscriptions SET
		expires_at = GREATEST(expires_at, :now) + CASE payment_frequency
			WHEN 'Month' THEN INTERVAL '30 days'
			ELSE INTERVAL '365 days'
		END,
		updated_at = :now
	WHERE subscription_id = ANY(:ids) AND status = :completed AND payment_frequency IN ('Month', 'Year')`

	args := database.Args{"now": now, "completed": StatusCompleted, "ids": pq.Array(ids)}
	n, err := database.NamedExecContextRows(ctx, db, q, args)
	if err != nil {
		return 0, fmt.Errorf("renewing subscriptions: %w", err)
	}
	return n, nil
}

// HasAccess reports whether the user holds a completed, unexpired
// subscription to ref. A course is also reachable through an academy
// containing it.
func HasAccess(ctx context.Context, db sqlx.ExtContext, userID string, ref product.Ref, now time.Time) (bool, error) {
	var q string
	switch ref.Kind {
	case product.KindCourse:
		q = `
		SELECT EXISTS (
			SELECT 1 FROM subscriptions s
			WHERE s.user_id = :user_id AND s.status = :status AND s.expires_at > :now
			AND (s.course_id = :id OR s.academy_id IN (SELECT academy_id FROM academy_courses WHERE course_id = :id))
		)`
	case product.KindAcademy:
		q = `
		SELECT EXISTS (
			SELECT 1 FROM subscriptions s
			WHERE s.user_id = :user_id AND s.status = :status AND s.expires_at > :now AND s.academy_id = :id
		)`
	default:
		return false, errs.Newf(errs.Validation, "unknown product type %q", ref.Kind)
	}

	var ok bool
	args := database.Args{"user_id": userID, "status": StatusCompleted, "now": now, "id": ref.ID}
	if err := database.NamedQueryScalar(ctx, db, q, args, &ok); err != nil {
		return false, fmt.Errorf("checking access of user[%s] to %s: %w", userID, ref, err)
	}
	return ok, nil
}
