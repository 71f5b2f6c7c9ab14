// Package review stores user ratings of courses and academies and keeps the
// product aggregates current.
package review

import (
	"time"

	"github.com/irsalhamdi/e-learning/core/product"
)

type Review struct {
	ID      string      `json:"id" db:"review_id"`
	UserID  string      `json:"userId" db:"user_id"`
	Product product.Ref `json:"product" db:"-"`
	product.Columns
	Rating    int       `json:"rating" db:"rating"`
	Comment   string    `json:"comment" db:"comment"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

type ReviewNew struct {
	Product product.Ref `json:"product" validate:"required"`
	Rating  int         `json:"rating" validate:"required,gte=1,lte=5"`
	Comment string      `json:"comment" validate:"max=2000"`
}

type ReviewUp struct {
	Rating  *int    `json:"rating" validate:"omitempty,gte=1,lte=5"`
	Comment *string `json:"comment" validate:"omitempty,max=2000"`
}
