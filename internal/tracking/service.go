package tracking

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/example/lingotrack/internal/achievement"
	"github.com/example/lingotrack/internal/mastery"
	"github.com/example/lingotrack/internal/progress"
	"github.com/example/lingotrack/internal/spaced_repetition"
	"github.com/example/lingotrack/internal/streak"
	"github.com/example/lingotrack/pkg/models"
)

// CompletionLog appends lesson completions
type CompletionLog interface {
	Append(ctx context.Context, event *models.CompletionEvent) error
}

// Service is the entry point the outer application layer calls into
type Service struct {
	tracker     *mastery.Tracker
	reviews     *spaced_repetition.Scheduler
	streaks     *streak.Calculator
	progress    *progress.Aggregator
	engine      *achievement.Engine
	completions CompletionLog
	logger      *slog.Logger
}

// Deps groups the components the service is built from
type Deps struct {
	Tracker     *mastery.Tracker
	Reviews     *spaced_repetition.Scheduler
	Streaks     *streak.Calculator
	Progress    *progress.Aggregator
	Engine      *achievement.Engine
	Completions CompletionLog
}

// CompletionResult is what recording a lesson completion produced
type CompletionResult struct {
	Event        models.CompletionEvent
	Achievements []models.AchievementAward
	Badges       []models.BadgeAward
}

// NewService creates a new service
func NewService(deps Deps) *Service {
	return &Service{
		tracker:     deps.Tracker,
		reviews:     deps.Reviews,
		streaks:     deps.Streaks,
		progress:    deps.Progress,
		engine:      deps.Engine,
		completions: deps.Completions,
		logger:      slog.Default().With("component", "tracking"),
	}
}

// RecordAttempt applies one practice attempt to the user's mastery of an item
func (s *Service) RecordAttempt(ctx context.Context, userID, itemID int64, kind models.ItemKind, isCorrect bool) (*models.MasteryRecord, error) {
	return s.tracker.RecordAttempt(ctx, userID, itemID, kind, isCorrect)
}

// GetDueReviews returns the items of one kind due for review
func (s *Service) GetDueReviews(ctx context.Context, userID int64, kind models.ItemKind, limit int) ([]models.MasteryRecord, error) {
	return s.reviews.GetDue(ctx, userID, kind, limit)
}

// GetStreak returns the current and longest streak
func (s *Service) GetStreak(ctx context.Context, userID int64) (models.StreakSnapshot, error) {
	return s.streaks.Compute(ctx, userID)
}

// GetProgressSummary returns the user's progress summary
func (s *Service) GetProgressSummary(ctx context.Context, userID int64) (*models.ProgressSummary, error) {
	return s.progress.Summarize(ctx, userID)
}

// EvaluateAchievements awards achievements satisfied by uc
func (s *Service) EvaluateAchievements(ctx context.Context, userID int64, uc models.UserContext) ([]models.AchievementAward, error) {
	return s.engine.Evaluate(ctx, userID, uc)
}

// EvaluateBadges awards badges satisfied by bc
func (s *Service) EvaluateBadges(ctx context.Context, userID int64, bc models.BadgeContext) ([]models.BadgeAward, error) {
	return s.engine.EvaluateBadges(ctx, userID, bc)
}

// RecordCompletion appends a lesson completion and re-evaluates achievements
// and badges against the updated history. Evaluation failures are logged and
// do not fail the call: the completion is stored and evaluation is repeated on
// the next event.
func (s *Service) RecordCompletion(ctx context.Context, event models.CompletionEvent, specialEvents ...string) (*CompletionResult, error) {
	if err := s.completions.Append(ctx, &event); err != nil {
		return nil, err
	}
	result := &CompletionResult{Event: event}

	uc, err := s.progress.BuildContext(ctx, event.UserID)
	if err != nil {
		s.logger.Warn("failed to build achievement context", "user_id", event.UserID, "error", err)
		return result, nil
	}
	result.Achievements, err = s.engine.Evaluate(ctx, event.UserID, uc)
	if err != nil {
		s.logger.Warn("achievement evaluation failed", "user_id", event.UserID, "error", err)
	}

	bc, err := s.progress.BuildBadgeContext(ctx, event.UserID, specialEvents)
	if err != nil {
		s.logger.Warn("failed to build badge context", "user_id", event.UserID, "error", err)
		return result, nil
	}
	result.Badges, err = s.engine.EvaluateBadges(ctx, event.UserID, bc)
	if err != nil {
		s.logger.Warn("badge evaluation failed", "user_id", event.UserID, "error", err)
	}
	return result, nil
}

// ResetItem clears the user's mastery record for an item
func (s *Service) ResetItem(ctx context.Context, userID, itemID int64, kind models.ItemKind) error {
	if err := s.tracker.Reset(ctx, userID, itemID, kind); err != nil {
		return errors.Wrap(err, "failed to reset item")
	}
	return nil
}
