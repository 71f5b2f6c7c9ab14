package payment

import (
	"github.com/irsalhamdi/e-learning/core/product"
	"github.com/irsalhamdi/e-learning/core/promo"
	"github.com/shopspring/decimal"
)

// Processing markup applied to every line item, independent of jurisdiction.
var (
	taxRate  = decimal.RequireFromString("0.029")
	fixedFee = decimal.RequireFromString("0.30")
	one      = decimal.NewFromInt(1)
	cents    = decimal.NewFromInt(100)
)

// UnitAmount returns the charged price of one item in cents, after the
// discount and the processing markup.
func UnitAmount(price decimal.Decimal, discount int) int64 {
	d := promo.Discount(price, discount)
	return d.Mul(one.Add(taxRate)).Add(fixedFee).Mul(cents).Round(0).IntPart()
}

// Totals returns the cart total before and after the discount, without
// markup.
func Totals(prods []product.Product, discount int) (total, grandTotal decimal.Decimal) {
	total = decimal.Zero
	for _, p := range prods {
		total = total.Add(p.Price)
	}
	return total, promo.Discount(total, discount)
}

// amount formats cents as a decimal string with two digits, as PayPal
// expects.
func amount(c int64) string {
	return decimal.New(c, -2).StringFixed(2)
}
