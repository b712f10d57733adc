package mastery

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/example/lingotrack/pkg/models"
)

// MaxCASRetries bounds how often a lost compare-and-set is reapplied
const MaxCASRetries = 5

// Store persists mastery records
type Store interface {
	Get(ctx context.Context, userID, itemID int64, kind models.ItemKind) (*models.MasteryRecord, error)
	Insert(ctx context.Context, rec *models.MasteryRecord) (bool, error)
	CompareAndSwap(ctx context.Context, rec *models.MasteryRecord) (bool, error)
	Delete(ctx context.Context, userID, itemID int64, kind models.ItemKind) error
}

// Catalog answers whether practice items exist
type Catalog interface {
	ItemExists(ctx context.Context, itemID int64, kind models.ItemKind) (bool, error)
	ItemCategory(ctx context.Context, itemID int64, kind models.ItemKind) (string, error)
}

// Scheduler moves the review date of a record after an attempt
type Scheduler interface {
	Advance(rec *models.MasteryRecord, isCorrect bool)
}

// Tracker updates per-item mastery after every practice attempt
type Tracker struct {
	store     Store
	catalog   Catalog
	scheduler Scheduler
	policies  Policies
	logger    *slog.Logger
	now       func() time.Time
}

// NewTracker creates a tracker. Kinds missing from policies fall back to the defaults.
func NewTracker(store Store, catalog Catalog, scheduler Scheduler, policies Policies) *Tracker {
	merged := DefaultPolicies()
	for kind, p := range policies {
		merged[kind] = p
	}
	return &Tracker{
		store:     store,
		catalog:   catalog,
		scheduler: scheduler,
		policies:  merged,
		logger:    slog.Default().With("component", "mastery"),
		now:       time.Now,
	}
}

// RecordAttempt applies one practice attempt and returns the stored record
func (t *Tracker) RecordAttempt(ctx context.Context, userID, itemID int64, kind models.ItemKind, isCorrect bool) (*models.MasteryRecord, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}
	policy := t.policies[kind]

	exists, err := t.catalog.ItemExists(ctx, itemID, kind)
	if err != nil {
		return nil, errors.Wrap(err, "failed to check item")
	}
	if !exists {
		return nil, errors.Wrapf(models.ErrNotFound, "item %d (%s)", itemID, kind)
	}

	for attempt := 0; attempt <= MaxCASRetries; attempt++ {
		rec, created, err := t.load(ctx, userID, itemID, kind)
		if err != nil {
			return nil, err
		}

		policy.Apply(rec, isCorrect)
		rec.LastPracticedAt = t.now()
		t.scheduler.Advance(rec, isCorrect)

		var saved bool
		if created {
			saved, err = t.store.Insert(ctx, rec)
		} else {
			saved, err = t.store.CompareAndSwap(ctx, rec)
		}
		if err != nil {
			return nil, err
		}
		if saved {
			t.logger.Debug("attempt recorded",
				"user_id", userID, "item_id", itemID, "kind", kind,
				"correct", isCorrect, "level", rec.MasteryLevel, "interval", rec.ReviewIntervalDays)
			return rec, nil
		}

		t.logger.Debug("mastery record changed concurrently, reapplying",
			"user_id", userID, "item_id", itemID, "attempt", attempt+1)
	}

	return nil, errors.Wrapf(models.ErrConflict, "mastery record user=%d item=%d kind=%s", userID, itemID, kind)
}

// Reset deletes a user's record for an item, returning it to the untracked state
func (t *Tracker) Reset(ctx context.Context, userID, itemID int64, kind models.ItemKind) error {
	if err := kind.Validate(); err != nil {
		return err
	}
	return t.store.Delete(ctx, userID, itemID, kind)
}

// load returns the stored record or a fresh one, and whether it is fresh
func (t *Tracker) load(ctx context.Context, userID, itemID int64, kind models.ItemKind) (*models.MasteryRecord, bool, error) {
	rec, err := t.store.Get(ctx, userID, itemID, kind)
	if err == nil {
		return rec, false, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, false, err
	}

	rec = models.NewMasteryRecord(userID, itemID, kind)
	rec.Category, err = t.catalog.ItemCategory(ctx, itemID, kind)
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to get item category")
	}
	return rec, true, nil
}
