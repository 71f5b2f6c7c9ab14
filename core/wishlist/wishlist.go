package wishlist

import (
	"time"

	"github.com/irsalhamdi/e-learning/core/product"
	"github.com/shopspring/decimal"
)

type Item struct {
	UserID  string      `json:"-" db:"user_id"`
	Product product.Ref `json:"product" db:"-"`
	product.Columns
	Name      string          `json:"name" db:"name"`
	ImageURL  string          `json:"imageUrl" db:"image_url"`
	Price     decimal.Decimal `json:"price" db:"price"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
}

type ItemNew struct {
	Product product.Ref `json:"product" validate:"required"`
}
