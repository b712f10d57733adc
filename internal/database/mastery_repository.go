package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/example/lingotrack/pkg/models"
)

const masteryColumns = `id, user_id, item_id, item_kind, category, mastery_level,
	correct_attempts, total_attempts, attempts_at_level, last_practiced_at,
	next_review_at, review_interval_days, version, created_at, updated_at`

// MasteryRepository handles database operations for mastery records
type MasteryRepository struct {
	db    *sqlx.DB
	retry RetryPolicy
}

// NewMasteryRepository creates a new repository instance
func NewMasteryRepository(db *sqlx.DB) *MasteryRepository {
	return &MasteryRepository{db: db, retry: DefaultRetryPolicy()}
}

// Get returns the record for a user and item, or ErrNotFound
func (r *MasteryRepository) Get(ctx context.Context, userID, itemID int64, kind models.ItemKind) (*models.MasteryRecord, error) {
	query := r.db.Rebind(`SELECT ` + masteryColumns + ` FROM mastery_records
		WHERE user_id = ? AND item_id = ? AND item_kind = ?`)

	var rec models.MasteryRecord
	err := r.retry.Do(ctx, "get mastery record", func() error {
		return r.db.GetContext(ctx, &rec, query, userID, itemID, string(kind))
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(models.ErrNotFound, "mastery record user=%d item=%d kind=%s", userID, itemID, kind)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get mastery record")
	}
	return &rec, nil
}

// Insert stores a new record unless one already exists for the same
// (user, item, kind). It reports whether this call created the row.
func (r *MasteryRepository) Insert(ctx context.Context, rec *models.MasteryRecord) (bool, error) {
	now := time.Now().UTC()
	query := r.db.Rebind(`
		INSERT INTO mastery_records (
			user_id, item_id, item_kind, category, mastery_level,
			correct_attempts, total_attempts, attempts_at_level, last_practiced_at,
			next_review_at, review_interval_days, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT (user_id, item_id, item_kind) DO NOTHING
		RETURNING id`)

	var id int64
	err := r.retry.Do(ctx, "insert mastery record", func() error {
		return r.db.QueryRowxContext(ctx, query,
			rec.UserID,
			rec.ItemID,
			string(rec.ItemKind),
			rec.Category,
			rec.MasteryLevel,
			rec.CorrectAttempts,
			rec.TotalAttempts,
			rec.AttemptsAtLevel,
			rec.LastPracticedAt.UTC(),
			rec.NextReviewAt.UTC(),
			rec.ReviewIntervalDays,
			now,
			now,
		).Scan(&id)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "failed to insert mastery record")
	}

	rec.ID = id
	rec.Version = 1
	rec.CreatedAt = now
	rec.UpdatedAt = now
	return true, nil
}

// CompareAndSwap writes rec only if the stored version still equals rec.Version.
// On success the version is bumped; false means another writer got there first.
func (r *MasteryRepository) CompareAndSwap(ctx context.Context, rec *models.MasteryRecord) (bool, error) {
	now := time.Now().UTC()
	query := r.db.Rebind(`
		UPDATE mastery_records SET
			category = ?,
			mastery_level = ?,
			correct_attempts = ?,
			total_attempts = ?,
			attempts_at_level = ?,
			last_practiced_at = ?,
			next_review_at = ?,
			review_interval_days = ?,
			version = version + 1,
			updated_at = ?
		WHERE id = ? AND version = ?`)

	var rows int64
	err := r.retry.Do(ctx, "update mastery record", func() error {
		result, err := r.db.ExecContext(ctx, query,
			rec.Category,
			rec.MasteryLevel,
			rec.CorrectAttempts,
			rec.TotalAttempts,
			rec.AttemptsAtLevel,
			rec.LastPracticedAt.UTC(),
			rec.NextReviewAt.UTC(),
			rec.ReviewIntervalDays,
			now,
			rec.ID,
			rec.Version,
		)
		if err != nil {
			return err
		}
		rows, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return false, errors.Wrap(err, "failed to update mastery record")
	}
	if rows == 0 {
		return false, nil
	}

	rec.Version++
	rec.UpdatedAt = now
	return true, nil
}

// Delete removes a record entirely (user-initiated reset)
func (r *MasteryRepository) Delete(ctx context.Context, userID, itemID int64, kind models.ItemKind) error {
	query := r.db.Rebind(`DELETE FROM mastery_records WHERE user_id = ? AND item_id = ? AND item_kind = ?`)

	var rows int64
	err := r.retry.Do(ctx, "delete mastery record", func() error {
		result, err := r.db.ExecContext(ctx, query, userID, itemID, string(kind))
		if err != nil {
			return err
		}
		rows, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return errors.Wrap(err, "failed to delete mastery record")
	}
	if rows == 0 {
		return errors.Wrapf(models.ErrNotFound, "mastery record user=%d item=%d kind=%s", userID, itemID, kind)
	}
	return nil
}

// ListDue returns records of the given kind that are due at now and not yet
// mastered, earliest first, capped at limit
func (r *MasteryRepository) ListDue(ctx context.Context, userID int64, kind models.ItemKind, now time.Time, limit int) ([]models.MasteryRecord, error) {
	query := r.db.Rebind(`SELECT ` + masteryColumns + ` FROM mastery_records
		WHERE user_id = ? AND item_kind = ?
		AND next_review_at <= ?
		AND mastery_level < ?
		ORDER BY next_review_at ASC, id ASC
		LIMIT ?`)

	records := []models.MasteryRecord{}
	err := r.retry.Do(ctx, "list due mastery records", func() error {
		records = records[:0]
		return r.db.SelectContext(ctx, &records, query, userID, string(kind), now.UTC(), models.MaxMasteryLevel, limit)
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list due mastery records")
	}
	return records, nil
}

// CountDue returns how many records of any kind are due for a user at now
func (r *MasteryRepository) CountDue(ctx context.Context, userID int64, now time.Time) (int, error) {
	query := r.db.Rebind(`SELECT COUNT(*) FROM mastery_records
		WHERE user_id = ? AND next_review_at <= ? AND mastery_level < ?`)

	var count int
	err := r.retry.Do(ctx, "count due mastery records", func() error {
		return r.db.GetContext(ctx, &count, query, userID, now.UTC(), models.MaxMasteryLevel)
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to count due mastery records")
	}
	return count, nil
}

// ListByUser returns every mastery record a user has
func (r *MasteryRepository) ListByUser(ctx context.Context, userID int64) ([]models.MasteryRecord, error) {
	query := r.db.Rebind(`SELECT ` + masteryColumns + ` FROM mastery_records
		WHERE user_id = ? ORDER BY item_kind, category, item_id`)

	records := []models.MasteryRecord{}
	err := r.retry.Do(ctx, "list mastery records", func() error {
		records = records[:0]
		return r.db.SelectContext(ctx, &records, query, userID)
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list mastery records")
	}
	return records, nil
}
