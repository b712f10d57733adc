package database

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/example/lingotrack/pkg/models"
)

// CompletionRepository handles the append-only lesson completion log
type CompletionRepository struct {
	db    *sqlx.DB
	retry RetryPolicy
}

// NewCompletionRepository creates a new repository instance
func NewCompletionRepository(db *sqlx.DB) *CompletionRepository {
	return &CompletionRepository{db: db, retry: DefaultRetryPolicy()}
}

type completionRow struct {
	ID               int64     `db:"id"`
	UserID           int64     `db:"user_id"`
	LessonID         int64     `db:"lesson_id"`
	Score            int       `db:"score"`
	TimeSpentSeconds int64     `db:"time_spent_seconds"`
	CompletedAt      time.Time `db:"completed_at"`
}

func (row completionRow) toModel() models.CompletionEvent {
	return models.CompletionEvent{
		ID:          row.ID,
		UserID:      row.UserID,
		LessonID:    row.LessonID,
		Score:       row.Score,
		TimeSpent:   time.Duration(row.TimeSpentSeconds) * time.Second,
		CompletedAt: row.CompletedAt,
	}
}

// Append writes a completion event. Events are never updated afterwards.
func (r *CompletionRepository) Append(ctx context.Context, event *models.CompletionEvent) error {
	if event.Score < 0 || event.Score > models.PerfectScore {
		return errors.Wrapf(models.ErrValidation, "score %d out of range", event.Score)
	}
	if event.CompletedAt.IsZero() {
		event.CompletedAt = time.Now()
	}

	query := r.db.Rebind(`
		INSERT INTO completion_events (user_id, lesson_id, score, time_spent_seconds, completed_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`)

	err := r.retry.Do(ctx, "append completion event", func() error {
		return r.db.QueryRowxContext(ctx, query,
			event.UserID,
			event.LessonID,
			event.Score,
			int64(event.TimeSpent/time.Second),
			event.CompletedAt.UTC(),
		).Scan(&event.ID)
	})
	if err != nil {
		return errors.Wrap(err, "failed to append completion event")
	}
	return nil
}

// ListByUser returns all completion events of a user, newest first
func (r *CompletionRepository) ListByUser(ctx context.Context, userID int64) ([]models.CompletionEvent, error) {
	query := r.db.Rebind(`
		SELECT id, user_id, lesson_id, score, time_spent_seconds, completed_at
		FROM completion_events
		WHERE user_id = ?
		ORDER BY completed_at DESC, id DESC`)

	var rows []completionRow
	err := r.retry.Do(ctx, "list completion events", func() error {
		rows = rows[:0]
		return r.db.SelectContext(ctx, &rows, query, userID)
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list completion events")
	}

	events := make([]models.CompletionEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, row.toModel())
	}
	return events, nil
}

// ListCompletionTimes returns only the completion timestamps of a user
func (r *CompletionRepository) ListCompletionTimes(ctx context.Context, userID int64) ([]time.Time, error) {
	query := r.db.Rebind(`SELECT completed_at FROM completion_events WHERE user_id = ? ORDER BY completed_at DESC`)

	var times []time.Time
	err := r.retry.Do(ctx, "list completion times", func() error {
		times = times[:0]
		return r.db.SelectContext(ctx, &times, query, userID)
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list completion times")
	}
	return times, nil
}
