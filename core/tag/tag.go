// Package tag stores the free form labels attached to courses.
package tag

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/irsalhamdi/e-learning/database"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type Tag struct {
	ID   string `json:"id" db:"tag_id"`
	Name string `json:"name" db:"name"`
}

// Normalize lower cases, trims and deduplicates names, dropping empty ones.
func Normalize(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Upsert creates the missing tags and returns all of them.
func Upsert(ctx context.Context, db sqlx.ExtContext, names []string) ([]Tag, error) {
	const q = `
	INSERT INTO tags (tag_id, name) VALUES (:tag_id, :name)
	ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
	RETURNING tag_id, name`

	tags := make([]Tag, 0, len(names))
	for _, n := range Normalize(names) {
		var t Tag
		if err := database.NamedQueryStruct(ctx, db, q, Tag{ID: uuid.NewString(), Name: n}, &t); err != nil {
			return nil, fmt.Errorf("upserting tag %q: %w", n, err)
		}
		tags = append(tags, t)
	}
	return tags, nil
}

// SetForCourse replaces the tags of a course.
func SetForCourse(ctx context.Context, db sqlx.ExtContext, courseID string, names []string) error {
	tags, err := Upsert(ctx, db, names)
	if err != nil {
		return err
	}

	const del = `DELETE FROM course_tags WHERE course_id = :course_id`
	if err := database.NamedExecContext(ctx, db, del, database.Args{"course_id": courseID}); err != nil {
		return fmt.Errorf("clearing tags of course[%s]: %w", courseID, err)
	}

	const ins = `INSERT INTO course_tags (course_id, tag_id) VALUES (:course_id, :tag_id)`
	for _, t := range tags {
		if err := database.NamedExecContext(ctx, db, ins, database.Args{"course_id": courseID, "tag_id": t.ID}); err != nil {
			return fmt.Errorf("tagging course[%s]: %w", courseID, err)
		}
	}
	return nil
}

// ForCourses maps course ids to their sorted tag names.
func ForCourses(ctx context.Context, db sqlx.ExtContext, courseIDs []string) (map[string][]string, error) {
	const q = `
	SELECT ct.course_id, t.name
	FROM course_tags ct JOIN tags t ON t.tag_id = ct.tag_id
	WHERE ct.course_id = ANY(:ids)
	ORDER BY t.name`

	var rows []struct {
		CourseID string `db:"course_id"`
		Name     string `db:"name"`
	}
	if err := database.NamedQuerySlice(ctx, db, q, database.Args{"ids": pq.Array(courseIDs)}, &rows); err != nil {
		return nil, fmt.Errorf("selecting course tags: %w", err)
	}

	out := make(map[string][]string, len(courseIDs))
	for _, r := range rows {
		out[r.CourseID] = append(out[r.CourseID], r.Name)
	}
	return out, nil
}

func List(ctx context.Context, db sqlx.ExtContext) ([]Tag, error) {
	const q = `SELECT tag_id, name FROM tags ORDER BY name`

	var tags []Tag
	if err := database.NamedQuerySlice(ctx, db, q, database.Args{}, &tags); err != nil {
		return nil, fmt.Errorf("selecting tags: %w", err)
	}
	return tags, nil
}
