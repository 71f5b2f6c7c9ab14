package promo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/irsalhamdi/e-learning/core/claims"
	"github.com/irsalhamdi/e-learning/core/user"
	"github.com/irsalhamdi/e-learning/database"
	"github.com/irsalhamdi/e-learning/errs"
	"github.com/irsalhamdi/e-learning/page"
	"github.com/irsalhamdi/e-learning/random"
	"github.com/irsalhamdi/e-learning/validate"
	"github.com/jmoiron/sqlx"
)

const promoColumns = `promo_id, code, percentage, validated, user_id, created_at, updated_at, version`

const codeLength = 8

// Create stores a new validated promo authored by userID. Instructors may
// not exceed maxInstructorPercentage.
func Create(ctx context.Context, db sqlx.ExtContext, pn PromoNew, userID string, maxInstructorPercentage int, now time.Time) (Promo, error) {
	usr, err := user.Fetch(ctx, db, userID)
	if err != nil {
		return Promo{}, err
	}

	switch usr.Role {
	case claims.RoleAdmin:
	case claims.RoleInstructor:
		if pn.Percentage > maxInstructorPercentage {
			return Promo{}, errs.Newf(errs.Validation, "instructors can create promos up to %d%%", maxInstructorPercentage)
		}
	default:
		return Promo{}, errs.New(errs.Unauthorized, "only instructors and admins can create promos")
	}

	code := strings.ToUpper(pn.Code)
	if code == "" {
		code = random.Code(codeLength)
	}

	p := Promo{
		ID:         validate.GenerateID(),
		Code:       code,
		Percentage: pn.Percentage,
		Validated:  true,
		UserID:     userID,
		CreatedAt:  now,
		UpdatedAt:  now,
		Version:    1,
	}

	const q = `
	INSERT INTO promos
		(promo_id, code, percentage, validated, user_id, created_at, updated_at)
	VALUES
		(:promo_id, :code, :percentage, :validated, :user_id, :created_at, :updated_at)`

	if err := database.NamedExecContext(ctx, db, q, p); err != nil {
		if errors.Is(err, database.ErrDBDuplicatedEntry) {
			return Promo{}, errs.Newf(errs.Conflict, "promo code %s already exists", code)
		}
		return Promo{}, fmt.Errorf("inserting promo: %w", err)
	}
	return p, nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (Promo, error) {
	q := `SELECT ` + promoColumns + ` FROM promos WHERE promo_id = :promo_id`

	var p Promo
	if err := database.NamedQueryStruct(ctx, db, q, database.Args{"promo_id": id}, &p); err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return Promo{}, errs.Newf(errs.NotFound, "promo[%s] not found", id)
		}
		return Promo{}, fmt.Errorf("selecting promo[%s]: %w", id, err)
	}
	return p, nil
}

func FetchByCode(ctx context.Context, db sqlx.ExtContext, code string) (Promo, error) {
	q := `SELECT ` + promoColumns + ` FROM promos WHERE code = :code`

	var p Promo
	if err := database.NamedQueryStruct(ctx, db, q, database.Args{"code": strings.ToUpper(code)}, &p); err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return Promo{}, errs.Newf(errs.NotFound, "promo %s not found", code)
		}
		return Promo{}, fmt.Errorf("selecting promo %s: %w", code, err)
	}
	return p, nil
}

func List(ctx context.Context, db sqlx.ExtContext, p page.Page) ([]Promo, int, error) {
	var total int
	if err := database.NamedQueryScalar(ctx, db, `SELECT COUNT(*) FROM promos`, database.Args{}, &total); err != nil {
		return nil, 0, fmt.Errorf("counting promos: %w", err)
	}

	q := `SELECT ` + promoColumns + ` FROM promos ORDER BY created_at DESC, promo_id LIMIT :limit OFFSET :offset`

	var ps []Promo
	if err := database.NamedQuerySlice(ctx, db, q, database.Args{"limit": p.Size, "offset": p.Offset()}, &ps); err != nil {
		return nil, 0, fmt.Errorf("selecting promos: %w", err)
	}
	return ps, total, nil
}

// SetValidated moves the promo to the requested state. It reports false,
// without writing, when the promo is already there.
func SetValidated(ctx context.Context, db sqlx.ExtContext, id string, validated bool, now time.Time) (bool, error) {
	p, err := Fetch(ctx, db, id)
	if err != nil {
		return false, err
	}
	if p.Validated == validated {
		return false, nil
	}

	p.Validated = validated
	p.UpdatedAt = now
	if err := Update(ctx, db, p); err != nil {
		return false, err
	}
	return true, nil
}

// Update writes p if its version is still current.
func Update(ctx context.Context, db sqlx.ExtContext, p Promo) error {
	const q = `
	UPDATE promos SET
		validated = :validated,
		updated_at = :updated_at,
		version = version + 1
	WHERE promo_id = :promo_id AND version = :version`

	n, err := database.NamedExecContextRows(ctx, db, q, p)
	if err != nil {
		return fmt.Errorf("updating promo[%s]: %w", p.ID, err)
	}
	if n == 0 {
		return errs.Newf(errs.Conflict, "promo[%s] was modified concurrently", p.ID)
	}
	return nil
}
