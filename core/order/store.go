package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/irsalhamdi/e-learning/core/claims"
	"github.com/irsalhamdi/e-learning/core/promo"
	"github.com/irsalhamdi/e-learning/core/user"
	"github.com/irsalhamdi/e-learning/database"
	"github.com/irsalhamdi/e-learning/errs"
	"github.com/irsalhamdi/e-learning/page"
	"github.com/irsalhamdi/e-learning/validate"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const orderColumns = `order_id, user_id, promo_id, total, grand_total, transaction_ref, payment_type, created_at`

// Create records a completed payment. The declared grand total is kept as
// is; a disagreement with the promo discount is only logged.
func Create(ctx context.Context, db sqlx.ExtContext, log logrus.FieldLogger, on OrderNew, now time.Time) (Order, error) {
	if _, err := user.Fetch(ctx, db, on.UserID); err != nil {
		return Order{}, err
	}

	expected := on.Total
	if on.PromoID != nil {
		p, err := promo.Fetch(ctx, db, *on.PromoID)
		if err != nil {
			return Order{}, err
		}
		expected = promo.Discount(on.Total, p.Percentage)
	}

	checkGrandTotal(log, on, expected)

	o := Order{
		ID:             validate.GenerateID(),
		UserID:         on.UserID,
		PromoID:        on.PromoID,
		Total:          on.Total,
		GrandTotal:     on.GrandTotal,
		TransactionRef: on.TransactionRef,
		PaymentType:    on.PaymentType,
		CreatedAt:      now,
	}

	const q = `
	INSERT INTO orders
		(order_id, user_id, promo_id, total, grand_total, transaction_ref, payment_type, created_at)
	VALUES
		(:order_id, :user_id, :promo_id, :total, :grand_total, :transaction_ref, :payment_type, :created_at)`

	if err := database.NamedExecContext(ctx, db, q, o); err != nil {
		return Order{}, fmt.Errorf("inserting order: %w", err)
	}
	return o, nil
}

// checkGrandTotal logs and reports a declared grand total that differs from
// expected by at least a cent.
func checkGrandTotal(log logrus.FieldLogger, on OrderNew, expected decimal.Decimal) bool {
	if expected.Round(2).Equal(on.GrandTotal.Round(2)) {
		return true
	}

	log.WithFields(logrus.Fields{
		"user_id":         on.UserID,
		"transaction_ref": on.TransactionRef,
		"grand_total":     on.GrandTotal.StringFixed(2),
		"expected":        expected.StringFixed(2),
	}).Warn("order grand total does not match promo discount")
	return false
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE order_id = :order_id`

	var o Order
	if err := database.NamedQueryStruct(ctx, db, q, database.Args{"order_id": id}, &o); err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return Order{}, errs.Newf(errs.NotFound, "order[%s] not found", id)
		}
		return Order{}, fmt.Errorf("selecting order[%s]: %w", id, err)
	}
	return o, nil
}

// FetchFor returns the order when the requester owns it or is an admin.
func FetchFor(ctx context.Context, db sqlx.ExtContext, id string, requester claims.Claims) (Order, error) {
	o, err := Fetch(ctx, db, id)
	if err != nil {
		return Order{}, err
	}
	if !requester.Owns(o.UserID) {
		return Order{}, errs.New(errs.Unauthorized, "order belongs to another user")
	}
	return o, nil
}

func List(ctx context.Context, db sqlx.ExtContext, p page.Page) ([]Order, int, error) {
	return list(ctx, db, "", p)
}

func ListUser(ctx context.Context, db sqlx.ExtContext, userID string, p page.Page) ([]Order, int, error) {
	return list(ctx, db, userID, p)
}

func list(ctx context.Context, db sqlx.ExtContext, userID string, p page.Page) ([]Order, int, error) {
	w := ""
	args := database.Args{}
	if userID != "" {
		w = ` WHERE user_id = :user_id`
		args["user_id"] = userID
	}

	var total int
	if err := database.NamedQueryScalar(ctx, db, `SELECT COUNT(*) FROM orders`+w, args, &total); err != nil {
		return nil, 0, fmt.Errorf("counting orders: %w", err)
	}

	args["limit"] = p.Size
	args["offset"] = p.Offset()
	q := `SELECT ` + orderColumns + ` FROM orders` + w + ` ORDER BY created_at DESC, order_id LIMIT :limit OFFSET :offset`

	var ords []Order
	if err := database.NamedQuerySlice(ctx, db, q, args, &ords); err != nil {
		return nil, 0, fmt.Errorf("selecting orders: %w", err)
	}
	return ords, total, nil
}
