// Package order is the ledger of completed payments. Orders are written once
// and never updated.
package order

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentType string

const (
	Stripe PaymentType = "stripe"
	Paypal PaymentType = "paypal"
)

func (t PaymentType) Valid() bool { return t == Stripe || t == Paypal }

type Order struct {
	ID             string          `json:"id" db:"order_id"`
	UserID         string          `json:"userId" db:"user_id"`
	PromoID        *string         `json:"promoId,omitempty" db:"promo_id"`
	Total          decimal.Decimal `json:"total" db:"total"`
	GrandTotal     decimal.Decimal `json:"grandTotal" db:"grand_total"`
	TransactionRef string          `json:"transactionRef" db:"transaction_ref"`
	PaymentType    PaymentType     `json:"paymentType" db:"payment_type"`
	CreatedAt      time.Time       `json:"createdAt" db:"created_at"`
}

type OrderNew struct {
	UserID         string          `json:"userId" validate:"required,uuid"`
	PromoID        *string         `json:"promoId" validate:"omitempty,uuid"`
	Total          decimal.Decimal `json:"total"`
	GrandTotal     decimal.Decimal `json:"grandTotal"`
	TransactionRef string          `json:"transactionRef" validate:"required"`
	PaymentType    PaymentType     `json:"paymentType" validate:"required,oneof=stripe paypal"`
}
