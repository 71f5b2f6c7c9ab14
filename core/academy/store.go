package academy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/irsalhamdi/e-learning/database"
	"github.com/irsalhamdi/e-learning/errs"
	"github.com/irsalhamdi/e-learning/page"
	"github.com/jmoiron/sqlx"
)

const academyColumns = `academy_id, instructor_id, name, description, image_url, price, validity, duration,
	approved, rating, reviews_count, ref, price_ref, created_at, updated_at, version`

func Create(ctx context.Context, db sqlx.ExtContext, a Academy) error {
	const q = `
	INSERT INTO academies
		(academy_id, instructor_id, name, description, image_url, price, validity, approved, created_at, updated_at)
	VALUES
		(:academy_id, :instructor_id, :name, :description, :image_url, :price, :validity, :approved, :created_at, :updated_at)`

	if err := database.NamedExecContext(ctx, db, q, a); err != nil {
		return fmt.Errorf("inserting academy: %w", err)
	}
	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (Academy, error) {
	q := `SELECT ` + academyColumns + ` FROM academies WHERE academy_id = :academy_id`

	var a Academy
	if err := database.NamedQueryStruct(ctx, db, q, database.Args{"academy_id": id}, &a); err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return Academy{}, errs.Newf(errs.NotFound, "academy[%s] not found", id)
		}
		return Academy{}, fmt.Errorf("selecting academy[%s]: %w", id, err)
	}
	return a, nil
}

func List(ctx context.Context, db sqlx.ExtContext, approved bool, p page.Page) ([]Academy, int, error) {
	args := database.Args{"approved": approved}

	var total int
	if err := database.NamedQueryScalar(ctx, db, `SELECT COUNT(*) FROM academies WHERE approved = :approved`, args, &total); err != nil {
		return nil, 0, fmt.Errorf("counting academies: %w", err)
	}

	args["limit"] = p.Size
	args["offset"] = p.Offset()
	q := `SELECT ` + academyColumns + ` FROM academies WHERE approved = :approved
	ORDER BY created_at DESC, academy_id LIMIT :limit OFFSET :offset`

	var as []Academy
	if err := database.NamedQuerySlice(ctx, db, q, args, &as); err != nil {
		return nil, 0, fmt.Errorf("selecting academies: %w", err)
	}
	return as, total, nil
}

func Update(ctx context.Context, db sqlx.ExtContext, a Academy) error {
	const q = `
	UPDATE academies SET
		name = :name,
		description = :description,
		image_url = :image_url,
		price = :price,
		validity = :validity,
		updated_at = :updated_at,
		version = version + 1
	WHERE academy_id = :academy_id AND version = :version`

	n, err := database.NamedExecContextRows(ctx, db, q, a)
	if err != nil {
		return fmt.Errorf("updating academy[%s]: %w", a.ID, err)
	}
	if n == 0 {
		return errs.Newf(errs.Conflict, "academy[%s] was modified concurrently", a.ID)
	}
	return nil
}

// Approve marks the academy approved. It reports false when it already was.
func Approve(ctx context.Context, db sqlx.ExtContext, id string) (bool, error) {
	const q = `
	UPDATE academies SET approved = TRUE, updated_at = :now, version = version + 1
	WHERE academy_id = :academy_id AND NOT approved`

	n, err := database.NamedExecContextRows(ctx, db, q, database.Args{"academy_id": id, "now": time.Now().UTC()})
	if err != nil {
		return false, fmt.Errorf("approving academy[%s]: %w", id, err)
	}
	if n == 1 {
		return true, nil
	}

	if _, err := Fetch(ctx, db, id); err != nil {
		return false, err
	}
	return false, nil
}

// AddCourse makes the course a member of the academy and refreshes the
// academy duration.
func AddCourse(ctx context.Context, db sqlx.ExtContext, academyID, courseID string) error {
	const q = `
	INSERT INTO academy_courses (academy_id, course_id) VALUES (:academy_id, :course_id)
	ON CONFLICT DO NOTHING`

	if err := database.NamedExecContext(ctx, db, q, database.Args{"academy_id": academyID, "course_id": courseID}); err != nil {
		if errors.Is(err, database.ErrDBMissingRef) {
			return errs.Newf(errs.NotFound, "course[%s] not found", courseID)
		}
		return fmt.Errorf("adding course[%s] to academy[%s]: %w", courseID, academyID, err)
	}
	return RecomputeDuration(ctx, db, academyID)
}

func RemoveCourse(ctx context.Context, db sqlx.ExtContext, academyID, courseID string) error {
	const q = `DELETE FROM academy_courses WHERE academy_id = :academy_id AND course_id = :course_id`

	n, err := database.NamedExecContextRows(ctx, db, q, database.Args{"academy_id": academyID, "course_id": courseID})
	if err != nil {
		return fmt.Errorf("removing course[%s] from academy[%s]: %w", courseID, academyID, err)
	}
	if n == 0 {
		return errs.Newf(errs.NotFound, "course[%s] is not part of academy[%s]", courseID, academyID)
	}
	return RecomputeDuration(ctx, db, academyID)
}

// RecomputeDuration sets the academy duration to the sum of its courses.
func RecomputeDuration(ctx context.Context, db sqlx.ExtContext, id string) error {
	const q = `
	UPDATE academies SET
		duration = COALESCE((
			SELECT SUM(c.duration) FROM courses c
			JOIN academy_courses ac ON ac.course_id = c.course_id
			WHERE ac.academy_id = :academy_id
		), 0)
	WHERE academy_id = :academy_id`

	if err := database.NamedExecContext(ctx, db, q, database.Args{"academy_id": id}); err != nil {
		return fmt.Errorf("recomputing duration of academy[%s]: %w", id, err)
	}
	return nil
}

// RecomputeForCourse refreshes every academy containing the course.
func RecomputeForCourse(ctx context.Context, db sqlx.ExtContext, courseID string) error {
	const q = `
	UPDATE academies a SET
		duration = COALESCE((
			SELECT SUM(c.duration) FROM courses c
			JOIN academy_courses ac ON ac.course_id = c.course_id
			WHERE ac.academy_id = a.academy_id
		), 0)
	WHERE a.academy_id IN (SELECT academy_id FROM academy_courses WHERE course_id = :course_id)`

	if err := database.NamedExecContext(ctx, db, q, database.Args{"course_id": courseID}); err != nil {
		return fmt.Errorf("recomputing academies of course[%s]: %w", courseID, err)
	}
	return nil
}
