package course

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/irsalhamdi/e-learning/core/tag"
	"github.com/irsalhamdi/e-learning/database"
	"github.com/irsalhamdi/e-learning/errs"
	"github.com/irsalhamdi/e-learning/page"
	"github.com/jmoiron/sqlx"
)

const courseColumns = `c.course_id, c.instructor_id, c.name, c.description, c.image_url, c.price, c.validity, c.duration,
	c.approved, c.rating, c.reviews_count, c.ref, c.price_ref, c.created_at, c.updated_at, c.version`

func Create(ctx context.Context, db sqlx.ExtContext, c Course) error {
	const q = `
	INSERT INTO courses
		(course_id, instructor_id, name, description, image_url, price, validity, duration, approved, created_at, updated_at)
	VALUES
		(:course_id, :instructor_id, :name, :description, :image_url, :price, :validity, :duration, :approved, :created_at, :updated_at)`

	if err := database.NamedExecContext(ctx, db, q, c); err != nil {
		return fmt.Errorf("inserting course: %w", err)
	}

	if err := tag.SetForCourse(ctx, db, c.ID, c.Tags); err != nil {
		return err
	}
	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (Course, error) {
	q := `SELECT ` + courseColumns + ` FROM courses c WHERE c.course_id = :course_id`

	var c Course
	if err := database.NamedQueryStruct(ctx, db, q, database.Args{"course_id": id}, &c); err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return Course{}, errs.Newf(errs.NotFound, "course[%s] not found", id)
		}
		return Course{}, fmt.Errorf("selecting course[%s]: %w", id, err)
	}

	if err := withTags(ctx, db, []*Course{&c}); err != nil {
		return Course{}, err
	}
	return c, nil
}

func where(f Filter) (string, database.Args) {
	var conds []string
	args := database.Args{}

	if f.Name != "" {
		conds = append(conds, `c.name ILIKE :name`)
		args["name"] = database.Like(f.Name)
	}
	if f.Tag != "" {
		conds = append(conds, `EXISTS (SELECT 1 FROM course_tags ct JOIN tags t ON t.tag_id = ct.tag_id
			WHERE ct.course_id = c.course_id AND t.name = :tag)`)
		args["tag"] = strings.ToLower(f.Tag)
	}
	if f.InstructorID != "" {
		conds = append(conds, `c.instructor_id = :instructor_id`)
		args["instructor_id"] = f.InstructorID
	}
	if f.Approved != nil {
		conds = append(conds, `c.approved = :approved`)
		args["approved"] = *f.Approved
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func List(ctx context.Context, db sqlx.ExtContext, f Filter, p page.Page) ([]Course, int, error) {
	w, args := where(f)

	var total int
	if err := database.NamedQueryScalar(ctx, db, `SELECT COUNT(*) FROM courses c`+w, args, &total); err != nil {
		return nil, 0, fmt.Errorf("counting courses: %w", err)
	}

	args["limit"] = p.Size
	args["offset"] = p.Offset()
	q := `SELECT ` + courseColumns + ` FROM courses c` + w + ` ORDER BY c.created_at DESC, c.course_id LIMIT :limit OFFSET :offset`

	var cs []Course
	if err := database.NamedQuerySlice(ctx, db, q, args, &cs); err != nil {
		return nil, 0, fmt.Errorf("selecting courses: %w", err)
	}

	if err := withTags(ctx, db, ptrs(cs)); err != nil {
		return nil, 0, err
	}
	return cs, total, nil
}

// ListOwned returns the courses the user was granted, directly or through
// an academy.
func ListOwned(ctx context.Context, db sqlx.ExtContext, userID string) ([]Course, error) {
	q := `
	SELECT ` + courseColumns + ` FROM courses c
	WHERE c.course_id IN (
		SELECT unnest(u.courses) FROM users u WHERE u.user_id = :user_id
		UNION
		SELECT ac.course_id FROM academy_courses ac
		JOIN users u ON ac.academy_id = ANY(u.academies)
		WHERE u.user_id = :user_id
	)
	ORDER BY c.name`

	var cs []Course
	if err := database.NamedQuerySlice(ctx, db, q, database.Args{"user_id": userID}, &cs); err != nil {
		return nil, fmt.Errorf("selecting courses owned by user[%s]: %w", userID, err)
	}

	if err := withTags(ctx, db, ptrs(cs)); err != nil {
		return nil, err
	}
	return cs, nil
}

// ListByAcademy returns the member courses of an academy.
func ListByAcademy(ctx context.Context, db sqlx.ExtContext, academyID string) ([]Course, error) {
	q := `
	SELECT ` + courseColumns + ` FROM courses c
	JOIN academy_courses ac ON ac.course_id = c.course_id
	WHERE ac.academy_id = :academy_id
	ORDER BY c.name`

	var cs []Course
	if err := database.NamedQuerySlice(ctx, db, q, database.Args{"academy_id": academyID}, &cs); err != nil {
		return nil, fmt.Errorf("selecting courses of academy[%s]: %w", academyID, err)
	}

	if err := withTags(ctx, db, ptrs(cs)); err != nil {
		return nil, err
	}
	return cs, nil
}

// Update writes c if its version is still current.
func Update(ctx context.Context, db sqlx.ExtContext, c Course) error {
	const q = `
	UPDATE courses SET
		name = :name,
		description = :description,
		image_url = :image_url,
		price = :price,
		validity = :validity,
		updated_at = :updated_at,
		version = version + 1
	WHERE course_id = :course_id AND version = :version`

	n, err := database.NamedExecContextRows(ctx, db, q, c)
	if err != nil {
		return fmt.Errorf("updating course[%s]: %w", c.ID, err)
	}
	if n == 0 {
		return errs.Newf(errs.Conflict, "course[%s] was modified concurrently", c.ID)
	}

	if c.Tags != nil {
		if err := tag.SetForCourse(ctx, db, c.ID, c.Tags); err != nil {
			return err
		}
	}
	return nil
}

// Approve marks the course approved. It reports false when the course was
// already approved.
func Approve(ctx context.Context, db sqlx.ExtContext, id string) (bool, error) {
	const q = `
	UPDATE courses SET approved = TRUE, updated_at = :now, version = version + 1
	WHERE course_id = :course_id AND NOT approved`

	n, err := database.NamedExecContextRows(ctx, db, q, database.Args{"course_id": id, "now": time.Now().UTC()})
	if err != nil {
		return false, fmt.Errorf("approving course[%s]: %w", id, err)
	}
	if n == 1 {
		return true, nil
	}

	if _, err := Fetch(ctx, db, id); err != nil {
		return false, err
	}
	return false, nil
}

// RecomputeDuration sets the course duration to the sum of its lessons.
func RecomputeDuration(ctx context.Context, db sqlx.ExtContext, id string) error {
	const q = `
	UPDATE courses SET
		duration = COALESCE((SELECT SUM(duration) FROM lessons WHERE course_id = :course_id), 0)
	WHERE course_id = :course_id`

	if err := database.NamedExecContext(ctx, db, q, database.Args{"course_id": id}); err != nil {
		return fmt.Errorf("recomputing duration of course[%s]: %w", id, err)
	}
	return nil
}

func withTags(ctx context.Context, db sqlx.ExtContext, cs []*Course) error {
	if len(cs) == 0 {
		return nil
	}

	ids := make([]string, len(cs))
	for i, c := range cs {
		ids[i] = c.ID
	}

	tags, err := tag.ForCourses(ctx, db, ids)
	if err != nil {
		return err
	}

	for _, c := range cs {
		c.Tags = tags[c.ID]
		if c.Tags == nil {
			c.Tags = []string{}
		}
	}
	return nil
}

func ptrs(cs []Course) []*Course {
	out := make([]*Course, len(cs))
	for i := range cs {
		out[i] = &cs[i]
	}
	return out
}
