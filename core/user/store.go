package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/irsalhamdi/e-learning/database"
	"github.com/irsalhamdi/e-learning/errs"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
)

const userColumns = `user_id, name, email, role, password_hash, active, subscriptions, courses, academies, created_at, updated_at, version`

var ErrWrongCredentials = errs.New(errs.Unauthorized, "email or password is incorrect")

func HashPassword(password string) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("generating password hash: %w", err)
	}
	return hash, nil
}

func Create(ctx context.Context, db sqlx.ExtContext, usr User) error {
	const q = `
	INSERT INTO users
		(user_id, name, email, role, password_hash, active, created_at, updated_at)
	VALUES
		(:user_id, :name, :email, :role, :password_hash, :active, :created_at, :updated_at)`

	if err := database.NamedExecContext(ctx, db, q, usr); err != nil {
		if errors.Is(err, database.ErrDBDuplicatedEntry) {
			return errs.New(errs.Conflict, "email already in use")
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE user_id = :user_id`

	var usr User
	if err := database.NamedQueryStruct(ctx, db, q, database.Args{"user_id": id}, &usr); err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return User{}, errs.Newf(errs.NotFound, "user[%s] not found", id)
		}
		return User{}, fmt.Errorf("selecting user[%s]: %w", id, err)
	}
	return usr, nil
}

func FetchByEmail(ctx context.Context, db sqlx.ExtContext, email string) (User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE email = :email`

	var usr User
	if err := database.NamedQueryStruct(ctx, db, q, database.Args{"email": email}, &usr); err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return User{}, errs.New(errs.NotFound, "user not found")
		}
		return User{}, fmt.Errorf("selecting user by email: %w", err)
	}
	return usr, nil
}

// Authenticate returns the user owning email if password matches its hash.
func Authenticate(ctx context.Context, db sqlx.ExtContext, email, password string) (User, error) {
	usr, err := FetchByEmail(ctx, db, email)
	if err != nil {
		if errs.Is(err, errs.NotFound) {
			return User{}, ErrWrongCredentials
		}
		return User{}, err
	}

	if len(usr.PasswordHash) == 0 {
		return User{}, ErrWrongCredentials
	}
	if err := bcrypt.CompareHashAndPassword(usr.PasswordHash, []byte(password)); err != nil {
		return User{}, ErrWrongCredentials
	}
	return usr, nil
}

// Update writes the mutable fields of usr if nobody changed it since it was
// read.
func Update(ctx context.Context, db sqlx.ExtContext, usr User) error {
	const q = `
	UPDATE users SET
		name = :name,
		role = :role,
		password_hash = :password_hash,
		active = :active,
		updated_at = :updated_at,
		version = version + 1
	WHERE user_id = :user_id AND version = :version`

	n, err := database.NamedExecContextRows(ctx, db, q, usr)
	if err != nil {
		return fmt.Errorf("updating user[%s]: %w", usr.ID, err)
	}
	if n == 0 {
		return errs.Newf(errs.Conflict, "user[%s] was modified concurrently", usr.ID)
	}
	return nil
}

// AppendSubscriptions adds ids to the user's denormalized subscription list.
func AppendSubscriptions(ctx context.Context, db sqlx.ExtContext, userID string, ids []string) error {
	const q = `
	UPDATE users SET
		subscriptions = subscriptions || :ids,
		updated_at = :now
	WHERE user_id = :user_id`

	args := database.Args{"ids": pq.Array(ids), "user_id": userID, "now": time.Now().UTC()}
	n, err := database.NamedExecContextRows(ctx, db, q, args)
	if err != nil {
		return fmt.Errorf("appending subscriptions to user[%s]: %w", userID, err)
	}
	if n == 0 {
		return errs.Newf(errs.NotFound, "user[%s] not found", userID)
	}
	return nil
}

// RemoveSubscription pulls the subscription and the product it granted from
// the user's denormalized lists. Exactly one of courseID and academyID is set.
func RemoveSubscription(ctx context.Context, db sqlx.ExtContext, userID, subscriptionID, courseID, academyID string) error {
	const q = `
	UPDATE users SET
		subscriptions = array_remove(subscriptions, :subscription_id),
		courses = CASE WHEN :course_id = '' THEN courses ELSE array_remove(courses, CAST(NULLIF(:course_id, '') AS UUID)) END,
		academies = CASE WHEN :academy_id = '' THEN academies ELSE array_remove(academies, CAST(NULLIF(:academy_id, '') AS UUID)) END,
		updated_at = :now
	WHERE user_id = :user_id`

	args := database.Args{
		"subscription_id": subscriptionID,
		"course_id":       courseID,
		"academy_id":      academyID,
		"user_id":         userID,
		"now":             time.Now().UTC(),
	}
	if err := database.NamedExecContext(ctx, db, q, args); err != nil {
		return fmt.Errorf("removing subscription[%s] from user[%s]: %w", subscriptionID, userID, err)
	}
	return nil
}

// AddProducts records granted products on the user's denormalized lists,
// skipping the ones already present.
func AddProducts(ctx context.Context, db sqlx.ExtContext, userID string, courseIDs, academyIDs []string) error {
	const q = `
	UPDATE users SET
		courses = ARRAY(SELECT DISTINCT unnest(courses || :course_ids)),
		academies = ARRAY(SELECT DISTINCT unnest(academies || :academy_ids)),
		updated_at = :now
	WHERE user_id = :user_id`

	args := database.Args{
		"course_ids":  pq.Array(courseIDs),
		"academy_ids": pq.Array(academyIDs),
		"user_id":     userID,
		"now":         time.Now().UTC(),
	}
	if err := database.NamedExecContext(ctx, db, q, args); err != nil {
		return fmt.Errorf("adding products to user[%s]: %w", userID, err)
	}
	return nil
}
