package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/irsalhamdi/e-learning/core/order"
	"github.com/irsalhamdi/e-learning/core/subscription"
	"github.com/irsalhamdi/e-learning/database"
	"github.com/irsalhamdi/e-learning/errs"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type CheckoutStatus string

const (
	CheckoutOpen      CheckoutStatus = "open"
	CheckoutFulfilled CheckoutStatus = "fulfilled"
)

// Checkout correlates a provider session with the subscriptions it pays for.
type Checkout struct {
	ID              string                 `json:"id" db:"checkout_id"`
	Provider        order.PaymentType      `json:"provider" db:"provider"`
	SessionRef      string                 `json:"sessionRef" db:"session_ref"`
	CustomerRef     string                 `json:"-" db:"customer_ref"`
	UserID          string                 `json:"userId" db:"user_id"`
	PromoID         *string                `json:"promoId,omitempty" db:"promo_id"`
	PaymentType     order.PaymentType      `json:"paymentType" db:"payment_type"`
	Frequency       subscription.Frequency `json:"paymentFrequency" db:"payment_frequency"`
	SubscriptionIDs pq.StringArray         `json:"subscriptionIds" db:"subscription_ids"`
	Total           decimal.Decimal        `json:"total" db:"total"`
	GrandTotal      decimal.Decimal        `json:"grandTotal" db:"grand_total"`
	Status          CheckoutStatus         `json:"status" db:"status"`
	OrderID         *string                `json:"orderId,omitempty" db:"order_id"`
	CreatedAt       time.Time              `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time              `json:"updatedAt" db:"updated_at"`
}

const checkoutColumns = `checkout_id, provider, session_ref, customer_ref, user_id, promo_id, payment_type, payment_frequency,
	subscription_ids, total, grand_total, status, order_id, created_at, updated_at`

// createCheckout stores ck unless a record for its session or its customer
// already exists, which happens when the provider event won the race
// against checkout and the record was rebuilt from customer metadata.
func createCheckout(ctx context.Context, db sqlx.ExtContext, ck Checkout) error {
	const q = `
	INSERT INTO checkouts
		(checkout_id, provider, session_ref, customer_ref, user_id, promo_id, payment_type, payment_frequency,
		subscription_ids, total, grand_total, status, created_at, updated_at)
	VALUES
		(:checkout_id, :provider, :session_ref, :customer_ref, :user_id, :promo_id, :payment_type, :payment_frequency,
		:subscription_ids, :total, :grand_total, :status, :created_at, :updated_at)
	ON CONFLICT DO NOTHING`

	if err := database.NamedExecContext(ctx, db, q, ck); err != nil {
		return fmt.Errorf("inserting checkout for session[%s]: %w", ck.SessionRef, err)
	}
	return nil
}

func fetchCheckout(ctx context.Context, db sqlx.ExtContext, sessionRef string, lock bool) (Checkout, error) {
	q := `SELECT ` + checkoutColumns + ` FROM checkouts WHERE session_ref = :session_ref`
	if lock {
		q += ` FOR UPDATE`
	}

	var ck Checkout
	if err := database.NamedQueryStruct(ctx, db, q, database.Args{"session_ref": sessionRef}, &ck); err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return Checkout{}, errs.Newf(errs.NotFound, "checkout for session[%s] not found", sessionRef)
		}
		return Checkout{}, fmt.Errorf("selecting checkout for session[%s]: %w", sessionRef, err)
	}
	return ck, nil
}

// fetchCheckoutByCustomer returns the checkout opened for a provider
// customer.
func fetchCheckoutByCustomer(ctx context.Context, db sqlx.ExtContext, customerRef string) (Checkout, error) {
	q := `SELECT ` + checkoutColumns + ` FROM checkouts WHERE customer_ref = :customer_ref`

	var ck Checkout
	if err := database.NamedQueryStruct(ctx, db, q, database.Args{"customer_ref": customerRef}, &ck); err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return Checkout{}, errs.Newf(errs.NotFound, "checkout for customer[%s] not found", customerRef)
		}
		return Checkout{}, fmt.Errorf("selecting checkout for customer[%s]: %w", customerRef, err)
	}
	return ck, nil
}

func markFulfilled(ctx context.Context, db sqlx.ExtContext, id, orderID string, now time.Time) error {
	const q = `
	UPDATE checkouts SET status = :status, order_id = :order_id, updated_at = :now
	WHERE checkout_id = :checkout_id`

	args := database.Args{"status": CheckoutFulfilled, "order_id": orderID, "now": now, "checkout_id": id}
	if err := database.NamedExecContext(ctx, db, q, args); err != nil {
		return fmt.Errorf("fulfilling checkout[%s]: %w", id, err)
	}
	return nil
}

// recordEvent stores a provider event id. It reports false when the event
// was already recorded.
func recordEvent(ctx context.Context, db sqlx.ExtContext, id string, provider order.PaymentType, typ string, now time.Time) (bool, error) {
	const q = `
	INSERT INTO payment_events (event_id, provider, type, created_at)
	VALUES (:event_id, :provider, :type, :created_at)
	ON CONFLICT (event_id) DO NOTHING`

	args := database.Args{"event_id": id, "provider": provider, "type": typ, "created_at": now}
	n, err := database.NamedExecContextRows(ctx, db, q, args)
	if err != nil {
		return false, fmt.Errorf("recording event[%s]: %w", id, err)
	}
	return n == 1, nil
}
