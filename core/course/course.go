package course

import (
	"time"

	"github.com/irsalhamdi/e-learning/core/product"
	"github.com/shopspring/decimal"
)

type Course struct {
	ID           string          `json:"id" db:"course_id"`
	InstructorID string          `json:"instructorId" db:"instructor_id"`
	Name         string          `json:"name" db:"name"`
	Description  string          `json:"description" db:"description"`
	ImageURL     string          `json:"imageUrl" db:"image_url"`
	Price        decimal.Decimal `json:"price" db:"price"`
	Validity     int             `json:"validity" db:"validity"`
	Duration     int             `json:"duration" db:"duration"`
	Approved     bool            `json:"approved" db:"approved"`
	Rating       decimal.Decimal `json:"rating" db:"rating"`
	ReviewsCount int             `json:"reviewsCount" db:"reviews_count"`
	Ref          string          `json:"-" db:"ref"`
	PriceRef     string          `json:"-" db:"price_ref"`
	Tags         []string        `json:"tags" db:"-"`
	CreatedAt    time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time       `json:"updatedAt" db:"updated_at"`
	Version      int             `json:"-" db:"version"`
}

func (c Course) ProductRef() product.Ref { return product.Course(c.ID) }

type CourseNew struct {
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description" validate:"required"`
	Price       decimal.Decimal `json:"price"`
	Validity    int             `json:"validity" validate:"gte=0,lte=3650"`
	ImageURL    string          `json:"imageUrl" validate:"required,url"`
	Tags        []string        `json:"tags" validate:"max=10,dive,required,max=32"`
}

type CourseUp struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Validity    *int             `json:"validity" validate:"omitempty,gte=0,lte=3650"`
	ImageURL    *string          `json:"imageUrl" validate:"omitempty,url"`
	Tags        []string         `json:"tags" validate:"omitempty,max=10,dive,required,max=32"`
}

type Filter struct {
	// Name matches courses whose name contains it, case insensitive.
	Name         string
	Tag          string
	InstructorID string
	Approved     *bool
}
