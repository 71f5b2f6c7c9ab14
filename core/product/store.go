package product

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/irsalhamdi/e-learning/database"
	"github.com/irsalhamdi/e-learning/errs"
	"github.com/jmoiron/sqlx"
)

type table struct {
	name string
	key  string
}

var tables = map[Kind]table{
	KindCourse:  {name: "courses", key: "course_id"},
	KindAcademy: {name: "academies", key: "academy_id"},
}

func tableOf(kind Kind) (table, error) {
	t, ok := tables[kind]
	if !ok {
		return table{}, errs.Newf(errs.Validation, "unknown product type %q", kind)
	}
	return t, nil
}

// ErrNotFound is returned, wrapped, when a referenced product is missing.
var ErrNotFound = errors.New("product not found")

func Fetch(ctx context.Context, db sqlx.ExtContext, ref Ref) (Product, error) {
	t, err := tableOf(ref.Kind)
	if err != nil {
		return Product{}, err
	}

	q := fmt.Sprintf(`
	SELECT instructor_id, name, description, image_url, price, validity, approved, ref, price_ref
	FROM %s WHERE %s = :id`, t.name, t.key)

	var p Product
	if err := database.NamedQueryStruct(ctx, db, q, database.Args{"id": ref.ID}, &p); err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return Product{}, &errs.Error{Kind: errs.NotFound, Msg: ref.String() + " not found", Err: ErrNotFound}
		}
		return Product{}, fmt.Errorf("selecting %s: %w", ref, err)
	}
	p.Ref = ref
	return p, nil
}

// FetchAll resolves every ref or fails with the first missing one.
func FetchAll(ctx context.Context, db sqlx.ExtContext, refs []Ref) ([]Product, error) {
	prods := make([]Product, 0, len(refs))
	for _, ref := range refs {
		p, err := Fetch(ctx, db, ref)
		if err != nil {
			return nil, err
		}
		prods = append(prods, p)
	}
	return prods, nil
}

// SetProviderRefs stores the payment provider product and price ids.
func SetProviderRefs(ctx context.Context, db sqlx.ExtContext, ref Ref, providerRef, priceRef string) error {
	t, err := tableOf(ref.Kind)
	if err != nil {
		return err
	}

	q := fmt.Sprintf(`
	UPDATE %s SET
		ref = :ref,
		price_ref = :price_ref,
		updated_at = :now
	WHERE %s = :id`, t.name, t.key)

	args := database.Args{"ref": providerRef, "price_ref": priceRef, "now": time.Now().UTC(), "id": ref.ID}
	n, err := database.NamedExecContextRows(ctx, db, q, args)
	if err != nil {
		return fmt.Errorf("updating provider refs of %s: %w", ref, err)
	}
	if n == 0 {
		return errs.Newf(errs.NotFound, "%s not found", ref)
	}
	return nil
}

// RecomputeRating refreshes the review aggregate of the product.
func RecomputeRating(ctx context.Context, db sqlx.ExtContext, ref Ref) error {
	t, err := tableOf(ref.Kind)
	if err != nil {
		return err
	}

	q := fmt.Sprintf(`
	UPDATE %[1]s SET
		rating = COALESCE((SELECT ROUND(AVG(rating), 2) FROM reviews WHERE %[2]s = :id), 0),
		reviews_count = (SELECT COUNT(*) FROM reviews WHERE %[2]s = :id)
	WHERE %[2]s = :id`, t.name, t.key)

	if err := database.NamedExecContext(ctx, db, q, database.Args{"id": ref.ID}); err != nil {
		return fmt.Errorf("recomputing rating of %s: %w", ref, err)
	}
	return nil
}
