// Package subscription manages a user's entitlement records. A subscription
// is created Pending for every purchased product and becomes Completed once
// the payment is confirmed.
package subscription

import (
	"time"

	"github.com/irsalhamdi/e-learning/core/product"
	"github.com/irsalhamdi/e-learning/errs"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "Pending"
	StatusCompleted Status = "Completed"
)

type Frequency string

const (
	Monthly Frequency = "Month"
	Yearly  Frequency = "Year"
	OneOff  Frequency = "One-Off"
)

func (f Frequency) Valid() bool {
	switch f {
	case Monthly, Yearly, OneOff:
		return true
	}
	return false
}

// Recurring reports whether the frequency renews through provider invoices.
func (f Frequency) Recurring() bool { return f == Monthly || f == Yearly }

// Expiry returns when a subscription of frequency f started at from ends.
// One-off purchases effectively never expire.
func Expiry(f Frequency, from time.Time) (time.Time, error) {
	switch f {
	case Monthly:
		return from.Add(30 * 24 * time.Hour), nil
	case Yearly:
		return from.Add(365 * 24 * time.Hour), nil
	case OneOff:
		return from.AddDate(100, 0, 0), nil
	}
	return time.Time{}, errs.Newf(errs.Validation, "unknown payment frequency %q", f)
}

type Subscription struct {
	ID      string      `json:"id" db:"subscription_id"`
	UserID  string      `json:"userId" db:"user_id"`
	Product product.Ref `json:"product" db:"-"`
	product.Columns
	Status    Status          `json:"status" db:"status"`
	Frequency Frequency       `json:"paymentFrequency" db:"payment_frequency"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	ExpiresAt time.Time       `json:"expiresAt" db:"expires_at"`
	OrderID   *string         `json:"orderId,omitempty" db:"order_id"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time       `json:"updatedAt" db:"updated_at"`
}

// View is a subscription joined with its product name and order.
type View struct {
	Subscription
	ProductName    string              `json:"productName" db:"product_name"`
	TransactionRef *string             `json:"transactionRef,omitempty" db:"transaction_ref"`
	GrandTotal     decimal.NullDecimal `json:"grandTotal" db:"grand_total"`
}

// Batch is a request to create one Pending subscription per product.
type Batch struct {
	UserID    string
	OrderID   *string
	Frequency Frequency
	Products  []product.Ref
}

type Filter struct {
	UserID string
	Status Status
}
