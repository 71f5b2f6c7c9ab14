package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/irsalhamdi/e-learning/core/user"
	"github.com/irsalhamdi/e-learning/database"
	"github.com/irsalhamdi/e-learning/errs"
	"github.com/jmoiron/sqlx"
)

func Create(ctx context.Context, db sqlx.ExtContext, tkn Token) error {
	const q = `
	INSERT INTO tokens
		(hash, user_id, expiry, scope)
	VALUES
		(:hash, :user_id, :expiry, :scope)`

	if err := database.NamedExecContext(ctx, db, q, tkn); err != nil {
		return fmt.Errorf("inserting token: %w", err)
	}
	return nil
}

// FetchUser returns the user owning a live token of the given scope.
func FetchUser(ctx context.Context, db sqlx.ExtContext, plain, scope string) (user.User, error) {
	const q = `
	SELECT user_id FROM tokens
	WHERE hash = :hash AND scope = :scope AND expiry > :now`

	args := database.Args{"hash": Hash(plain), "scope": scope, "now": time.Now().UTC()}

	var userID string
	if err := database.NamedQueryScalar(ctx, db, q, args, &userID); err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return user.User{}, errs.New(errs.Validation, "invalid or expired token")
		}
		return user.User{}, fmt.Errorf("selecting token: %w", err)
	}

	return user.Fetch(ctx, db, userID)
}

func DeleteAll(ctx context.Context, db sqlx.ExtContext, userID, scope string) error {
	const q = `DELETE FROM tokens WHERE user_id = :user_id AND scope = :scope`

	if err := database.NamedExecContext(ctx, db, q, database.Args{"user_id": userID, "scope": scope}); err != nil {
		return fmt.Errorf("deleting %s tokens of user[%s]: %w", scope, userID, err)
	}
	return nil
}
