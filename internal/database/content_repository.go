package database

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/example/lingotrack/pkg/models"
)

// ContentRepository answers read-only lookups against the content catalog
// (lessons and practice items). Content itself is managed elsewhere.
type ContentRepository struct {
	db    *sqlx.DB
	retry RetryPolicy
}

// NewContentRepository creates a new repository instance
func NewContentRepository(db *sqlx.DB) *ContentRepository {
	return &ContentRepository{db: db, retry: DefaultRetryPolicy()}
}

// ItemExists reports whether the item is in the catalog with the given kind
func (r *ContentRepository) ItemExists(ctx context.Context, itemID int64, kind models.ItemKind) (bool, error) {
	query := r.db.Rebind(`SELECT COUNT(*) FROM items WHERE id = ? AND kind = ?`)

	var count int
	err := r.retry.Do(ctx, "item exists", func() error {
		return r.db.GetContext(ctx, &count, query, itemID, string(kind))
	})
	if err != nil {
		return false, errors.Wrap(err, "failed to look up item")
	}
	return count > 0, nil
}

// ItemCategory returns the vocabulary topic or grammar type of an item
func (r *ContentRepository) ItemCategory(ctx context.Context, itemID int64, kind models.ItemKind) (string, error) {
	query := r.db.Rebind(`SELECT category FROM items WHERE id = ? AND kind = ?`)

	var category string
	err := r.retry.Do(ctx, "item category", func() error {
		return r.db.GetContext(ctx, &category, query, itemID, string(kind))
	})
	if errors.Is(err, sql.ErrNoRows) {
		return "", errors.Wrapf(models.ErrNotFound, "item %d (%s)", itemID, kind)
	}
	if err != nil {
		return "", errors.Wrap(err, "failed to get item category")
	}
	return category, nil
}

// PublishedLessonCount returns the number of published lessons
func (r *ContentRepository) PublishedLessonCount(ctx context.Context) (int, error) {
	var count int
	err := r.retry.Do(ctx, "published lesson count", func() error {
		return r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM lessons WHERE published = TRUE`)
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to count published lessons")
	}
	return count, nil
}

// IsLessonPublished reports whether a lesson exists and is published
func (r *ContentRepository) IsLessonPublished(ctx context.Context, lessonID int64) (bool, error) {
	query := r.db.Rebind(`SELECT COUNT(*) FROM lessons WHERE id = ? AND published = TRUE`)

	var count int
	err := r.retry.Do(ctx, "lesson published", func() error {
		return r.db.GetContext(ctx, &count, query, lessonID)
	})
	if err != nil {
		return false, errors.Wrap(err, "failed to check lesson")
	}
	return count > 0, nil
}

// LessonCategory returns the category of a lesson
func (r *ContentRepository) LessonCategory(ctx context.Context, lessonID int64) (string, error) {
	query := r.db.Rebind(`SELECT category FROM lessons WHERE id = ?`)

	var category string
	err := r.retry.Do(ctx, "lesson category", func() error {
		return r.db.GetContext(ctx, &category, query, lessonID)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return "", errors.Wrapf(models.ErrNotFound, "lesson %d", lessonID)
	}
	if err != nil {
		return "", errors.Wrap(err, "failed to get lesson category")
	}
	return category, nil
}

// LessonCountByCategory returns the number of published lessons per category
func (r *ContentRepository) LessonCountByCategory(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		Category string `db:"category"`
		Count    int    `db:"count"`
	}
	err := r.retry.Do(ctx, "lesson count by category", func() error {
		rows = rows[:0]
		return r.db.SelectContext(ctx, &rows, `
			SELECT category, COUNT(*) AS count
			FROM lessons
			WHERE published = TRUE
			GROUP BY category`)
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to count lessons by category")
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Category] = row.Count
	}
	return counts, nil
}

// LessonCourse returns the course a lesson belongs to
func (r *ContentRepository) LessonCourse(ctx context.Context, lessonID int64) (int64, error) {
	query := r.db.Rebind(`SELECT course_id FROM lessons WHERE id = ?`)

	var courseID int64
	err := r.retry.Do(ctx, "lesson course", func() error {
		return r.db.GetContext(ctx, &courseID, query, lessonID)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return 0, errors.Wrapf(models.ErrNotFound, "lesson %d", lessonID)
	}
	if err != nil {
		return 0, errors.Wrap(err, "failed to get lesson course")
	}
	return courseID, nil
}

// LessonCountByCourse returns the number of published lessons per course
func (r *ContentRepository) LessonCountByCourse(ctx context.Context) (map[int64]int, error) {
	var rows []struct {
		CourseID int64 `db:"course_id"`
		Count    int   `db:"count"`
	}
	err := r.retry.Do(ctx, "lesson count by course", func() error {
		rows = rows[:0]
		return r.db.SelectContext(ctx, &rows, `
			SELECT course_id, COUNT(*) AS count
			FROM lessons
			WHERE published = TRUE
			GROUP BY course_id`)
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to count lessons by course")
	}

	counts := make(map[int64]int, len(rows))
	for _, row := range rows {
		counts[row.CourseID] = row.Count
	}
	return counts, nil
}

// UpsertItem adds or replaces a catalog item. Used by imports and tests.
func (r *ContentRepository) UpsertItem(ctx context.Context, itemID int64, kind models.ItemKind, category string) error {
	query := r.db.Rebind(`
		INSERT INTO items (id, kind, category) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET kind = EXCLUDED.kind, category = EXCLUDED.category`)
	_, err := r.db.ExecContext(ctx, query, itemID, string(kind), category)
	if err != nil {
		return errors.Wrap(err, "failed to upsert item")
	}
	return nil
}

// UpsertLesson adds or replaces a catalog lesson. Used by imports and tests.
func (r *ContentRepository) UpsertLesson(ctx context.Context, lessonID, courseID int64, category string, published bool) error {
	query := r.db.Rebind(`
		INSERT INTO lessons (id, course_id, category, published) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			course_id = EXCLUDED.course_id,
			category = EXCLUDED.category,
			published = EXCLUDED.published`)
	_, err := r.db.ExecContext(ctx, query, lessonID, courseID, category, published)
	if err != nil {
		return errors.Wrap(err, "failed to upsert lesson")
	}
	return nil
}
