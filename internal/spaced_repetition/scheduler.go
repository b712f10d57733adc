package spaced_repetition

import (
	"context"
	"time"

	"github.com/example/lingotrack/pkg/models"
)

// DefaultDueLimit caps a due-review query when the caller passes no limit
const DefaultDueLimit = 20

// DueStore is the part of the progress store the scheduler reads from
type DueStore interface {
	ListDue(ctx context.Context, userID int64, kind models.ItemKind, now time.Time, limit int) ([]models.MasteryRecord, error)
}

// Scheduler implements interval-doubling spaced repetition
type Scheduler struct {
	// Longest gap between two reviews, in days
	MaxInterval int
	// Gap after a failed review, in days
	ResetInterval int

	store DueStore
	now   func() time.Time
}

// NewScheduler creates a scheduler with the default bounds
func NewScheduler(store DueStore) *Scheduler {
	return &Scheduler{
		MaxInterval:   models.MaxReviewIntervalDays,
		ResetInterval: models.MinReviewIntervalDays,
		store:         store,
		now:           time.Now,
	}
}

// Advance updates the review interval and next review date of a record.
// LastPracticedAt must already hold the time of the attempt.
func (s *Scheduler) Advance(rec *models.MasteryRecord, isCorrect bool) {
	interval := rec.ReviewIntervalDays
	if interval < models.MinReviewIntervalDays {
		interval = models.MinReviewIntervalDays
	}

	if isCorrect {
		interval *= 2
		if interval > s.MaxInterval {
			interval = s.MaxInterval
		}
	} else {
		interval = s.ResetInterval
	}

	rec.ReviewIntervalDays = interval
	rec.NextReviewAt = rec.LastPracticedAt.AddDate(0, 0, interval)
}

// GetDue returns the records of one kind that are due for review and not yet
// mastered, most overdue first. An empty slice means nothing is due.
func (s *Scheduler) GetDue(ctx context.Context, userID int64, kind models.ItemKind, limit int) ([]models.MasteryRecord, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultDueLimit
	}
	return s.store.ListDue(ctx, userID, kind, s.now(), limit)
}
