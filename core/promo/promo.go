// Package promo implements percentage discount codes.
package promo

import (
	"time"

	"github.com/shopspring/decimal"
)

type Promo struct {
	ID         string    `json:"id" db:"promo_id"`
	Code       string    `json:"code" db:"code"`
	Percentage int       `json:"percentage" db:"percentage"`
	Validated  bool      `json:"validated" db:"validated"`
	UserID     string    `json:"userId" db:"user_id"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time `json:"updatedAt" db:"updated_at"`
	Version    int       `json:"-" db:"version"`
}

// PromoNew creates a promo. An empty code is generated.
type PromoNew struct {
	Code       string `json:"code" validate:"omitempty,alphanum,min=3,max=32"`
	Percentage int    `json:"percentage" validate:"required,gte=1,lte=100"`
}

var hundred = decimal.NewFromInt(100)

// Discount applies percentage to total.
func Discount(total decimal.Decimal, percentage int) decimal.Decimal {
	off := decimal.NewFromInt(int64(percentage)).Div(hundred)
	return total.Mul(decimal.NewFromInt(1).Sub(off))
}

// Effective is the percentage a checkout may apply: zero unless validated.
func (p Promo) Effective() int {
	if !p.Validated {
		return 0
	}
	return p.Percentage
}
