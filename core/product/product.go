// Package product models purchasable catalog entries. A product is either
// a course or an academy and is always addressed through a Ref.
package product

import (
	"database/sql"

	"github.com/irsalhamdi/e-learning/errs"
	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindCourse  Kind = "Course"
	KindAcademy Kind = "Academy"
)

// Ref names one product. Stores persist it as a pair of nullable foreign
// keys of which exactly one is set, see Columns.
type Ref struct {
	Kind Kind   `json:"productType" validate:"required,oneof=Course Academy"`
	ID   string `json:"productId" validate:"required,uuid"`
}

func Course(id string) Ref  { return Ref{Kind: KindCourse, ID: id} }
func Academy(id string) Ref { return Ref{Kind: KindAcademy, ID: id} }

func (r Ref) String() string { return string(r.Kind) + "[" + r.ID + "]" }

func (r Ref) Columns() Columns {
	switch r.Kind {
	case KindCourse:
		return Columns{CourseID: sql.NullString{String: r.ID, Valid: true}}
	case KindAcademy:
		return Columns{AcademyID: sql.NullString{String: r.ID, Valid: true}}
	}
	return Columns{}
}

// Columns is the storage form of a Ref, embedded in rows that reference a
// product.
type Columns struct {
	CourseID  sql.NullString `json:"-" db:"course_id"`
	AcademyID sql.NullString `json:"-" db:"academy_id"`
}

func (c Columns) Ref() (Ref, error) {
	switch {
	case c.CourseID.Valid && !c.AcademyID.Valid:
		return Course(c.CourseID.String), nil
	case c.AcademyID.Valid && !c.CourseID.Valid:
		return Academy(c.AcademyID.String), nil
	}
	return Ref{}, errs.New(errs.Internal, "row references zero or two products")
}

// Product is the purchase oriented view shared by courses and academies.
type Product struct {
	Ref         Ref             `json:"product" db:"-"`
	OwnerID     string          `json:"ownerId" db:"instructor_id"`
	Name        string          `json:"name" db:"name"`
	Description string          `json:"description" db:"description"`
	ImageURL    string          `json:"imageUrl" db:"image_url"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Validity    int             `json:"validity" db:"validity"`
	Approved    bool            `json:"approved" db:"approved"`
	ProviderRef string          `json:"-" db:"ref"`
	PriceRef    string          `json:"-" db:"price_ref"`
}

// Subscribable reports whether the product can be bought as a recurring
// subscription.
func (p Product) Subscribable() bool { return p.Validity > 0 }
