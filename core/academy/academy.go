// Package academy groups courses into a product sold as a whole.
package academy

import (
	"time"

	"github.com/irsalhamdi/e-learning/core/course"
	"github.com/irsalhamdi/e-learning/core/product"
	"github.com/shopspring/decimal"
)

type Academy struct {
	ID           string          `json:"id" db:"academy_id"`
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
	CreatedAt    time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time       `json:"updatedAt" db:"updated_at"`
	Version      int             `json:"-" db:"version"`
}

func (a Academy) ProductRef() product.Ref { return product.Academy(a.ID) }

// Detail is an academy with its member courses.
type Detail struct {
	Academy
	Courses []course.Course `json:"courses"`
}

type AcademyNew struct {
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description" validate:"required"`
	Price       decimal.Decimal `json:"price"`
	Validity    int             `json:"validity" validate:"gte=0,lte=3650"`
	ImageURL    string          `json:"imageUrl" validate:"required,url"`
	CourseIDs   []string        `json:"courses" validate:"max=50,dive,uuid"`
}

type AcademyUp struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Validity    *int             `json:"validity" validate:"omitempty,gte=0,lte=3650"`
	ImageURL    *string          `json:"imageUrl" validate:"omitempty,url"`
}

type CourseAdd struct {
	CourseID string `json:"courseId" validate:"required,uuid"`
}
