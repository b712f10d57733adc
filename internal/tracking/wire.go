package tracking

import (
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/lingotrack/internal/achievement"
	"github.com/example/lingotrack/internal/database"
	"github.com/example/lingotrack/internal/mastery"
	"github.com/example/lingotrack/internal/progress"
	"github.com/example/lingotrack/internal/spaced_repetition"
	"github.com/example/lingotrack/internal/streak"
)

// Options configure a database-backed service
type Options struct {
	Policies       mastery.Policies
	StreakLocation *time.Location
}

// NewFromDB builds a service whose components all read and write db
func NewFromDB(db *sqlx.DB, catalog *achievement.Catalog, notifier achievement.Notifier, opts Options) *Service {
	masteryRepo := database.NewMasteryRepository(db)
	completionRepo := database.NewCompletionRepository(db)
	contentRepo := database.NewContentRepository(db)

	reviews := spaced_repetition.NewScheduler(masteryRepo)
	streaks := streak.NewCalculator(completionRepo, opts.StreakLocation)

	return NewService(Deps{
		Tracker:     mastery.NewTracker(masteryRepo, contentRepo, reviews, opts.Policies),
		Reviews:     reviews,
		Streaks:     streaks,
		Progress:    progress.NewAggregator(masteryRepo, completionRepo, contentRepo, streaks),
		Engine:      achievement.NewEngine(catalog, database.NewAwardRepository(db), notifier),
		Completions: completionRepo,
	})
}
