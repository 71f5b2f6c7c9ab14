package lesson

import (
	"context"
	"errors"
	"fmt"

	"github.com/irsalhamdi/e-learning/database"
	"github.com/irsalhamdi/e-learning/errs"
	"github.com/jmoiron/sqlx"
)

const lessonColumns = `lesson_id, course_id, index, name, description, free, url, duration, created_at, updated_at, version`

func Create(ctx context.Context, db sqlx.ExtContext, l Lesson) error {
	const q = `
	INSERT INTO lessons
		(lesson_id, course_id, index, name, description, free, url, duration, created_at, updated_at)
	VALUES
		(:lesson_id, :course_id, :index, :name, :description, :free, :url, :duration, :created_at, :updated_at)`

	if err := database.NamedExecContext(ctx, db, q, l); err != nil {
		switch {
		case errors.Is(err, database.ErrDBDuplicatedEntry):
			return errs.Newf(errs.Conflict, "course[%s] already has a lesson at index %d", l.CourseID, l.Index)
		case errors.Is(err, database.ErrDBMissingRef):
			return errs.Newf(errs.NotFound, "course[%s] not found", l.CourseID)
		}
		return fmt.Errorf("inserting lesson: %w", err)
	}
	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (Lesson, error) {
	q := `SELECT ` + lessonColumns + ` FROM lessons WHERE lesson_id = :lesson_id`

	var l Lesson
	if err := database.NamedQueryStruct(ctx, db, q, database.Args{"lesson_id": id}, &l); err != nil {
		if errors.Is(err, database.ErrDBNotFound) {
			return Lesson{}, errs.Newf(errs.NotFound, "lesson[%s] not found", id)
		}
		return Lesson{}, fmt.Errorf("selecting lesson[%s]: %w", id, err)
	}
	return l, nil
}

// ListByCourse returns the lessons of a course in index order.
func ListByCourse(ctx context.Context, db sqlx.ExtContext, courseID string) ([]Lesson, error) {
	q := `SELECT ` + lessonColumns + ` FROM lessons WHERE course_id = :course_id ORDER BY index`

	ls := []Lesson{}
	if err := database.NamedQuerySlice(ctx, db, q, database.Args{"course_id": courseID}, &ls); err != nil {
		return nil, fmt.Errorf("selecting lessons of course[%s]: %w", courseID, err)
	}
	return ls, nil
}

func Update(ctx context.Context, db sqlx.ExtContext, l Lesson) error {
	const q = `
	UPDATE lessons SET
		index = :index,
		name = :name,
		description = :description,
		free = :free,
		url = :url,
		duration = :duration,
		updated_at = :updated_at,
		version = version + 1
	WHERE lesson_id = :lesson_id AND version = :version`

	n, err := database.NamedExecContextRows(ctx, db, q, l)
	if err != nil {
		if errors.Is(err, database.ErrDBDuplicatedEntry) {
			return errs.Newf(errs.Conflict, "course[%s] already has a lesson at index %d", l.CourseID, l.Index)
		}
		return fmt.Errorf("updating lesson[%s]: %w", l.ID, err)
	}
	if n == 0 {
		return errs.Newf(errs.Conflict, "lesson[%s] was modified concurrently", l.ID)
	}
	return nil
}

func Delete(ctx context.Context, db sqlx.ExtContext, id string) error {
	const q = `DELETE FROM lessons WHERE lesson_id = :lesson_id`

	n, err := database.NamedExecContextRows(ctx, db, q, database.Args{"lesson_id": id})
	if err != nil {
		return fmt.Errorf("deleting lesson[%s]: %w", id, err)
	}
	if n == 0 {
		return errs.Newf(errs.NotFound, "lesson[%s] not found", id)
	}
	return nil
}
