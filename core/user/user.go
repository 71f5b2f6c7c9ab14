package user

import (
	"time"

	"github.com/lib/pq"
)

type User struct {
	ID            string         `json:"id" db:"user_id"`
	Name          string         `json:"name" db:"name"`
	Email         string         `json:"email" db:"email"`
	Role          string         `json:"role" db:"role"`
	PasswordHash  []byte         `json:"-" db:"password_hash"`
	Active        bool           `json:"active" db:"active"`
	Subscriptions pq.StringArray `json:"subscriptions" db:"subscriptions"`
	Courses       pq.StringArray `json:"courses" db:"courses"`
	Academies     pq.StringArray `json:"academies" db:"academies"`
	CreatedAt     time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time      `json:"updatedAt" db:"updated_at"`
	Version       int            `json:"-" db:"version"`
}

type UserNew struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Role            string `json:"role" validate:"required,oneof=admin instructor user"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"eqfield=Password"`
}

type UserSignup struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"eqfield=Password"`
}

type UserLogin struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}
