package progress

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/example/lingotrack/internal/streak"
	"github.com/example/lingotrack/pkg/models"
)

// Aggregation constants
const (
	// Categories with a mean mastery level below this are weak areas
	WeakAreaThreshold = 3.0
	// XP needed per user level
	XPPerLevel = 100
)

// MasterySource lists a user's mastery records
type MasterySource interface {
	ListByUser(ctx context.Context, userID int64) ([]models.MasteryRecord, error)
}

// CompletionSource lists a user's completion events
type CompletionSource interface {
	ListByUser(ctx context.Context, userID int64) ([]models.CompletionEvent, error)
}

// Catalog answers lesson lookups against published content
type Catalog interface {
	PublishedLessonCount(ctx context.Context) (int, error)
	IsLessonPublished(ctx context.Context, lessonID int64) (bool, error)
	LessonCategory(ctx context.Context, lessonID int64) (string, error)
	LessonCountByCategory(ctx context.Context) (map[string]int, error)
	LessonCourse(ctx context.Context, lessonID int64) (int64, error)
	LessonCountByCourse(ctx context.Context) (map[int64]int, error)
}

// Aggregator rolls per-item state and completion history up into summaries.
// It never writes.
type Aggregator struct {
	mastery     MasterySource
	completions CompletionSource
	catalog     Catalog
	streaks     *streak.Calculator
	logger      *slog.Logger
}

// NewAggregator creates a new aggregator
func NewAggregator(mastery MasterySource, completions CompletionSource, catalog Catalog, streaks *streak.Calculator) *Aggregator {
	return &Aggregator{
		mastery:     mastery,
		completions: completions,
		catalog:     catalog,
		streaks:     streaks,
		logger:      slog.Default().With("component", "progress"),
	}
}

// Summarize builds the progress summary of a user
func (a *Aggregator) Summarize(ctx context.Context, userID int64) (*models.ProgressSummary, error) {
	records, err := a.mastery.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load mastery records")
	}
	events, err := a.completions.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load completion events")
	}
	published, err := a.catalog.PublishedLessonCount(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count published lessons")
	}

	lessons := distinctLessons(events)
	done, err := a.publishedLessons(ctx, lessons)
	if err != nil {
		return nil, err
	}

	summary := &models.ProgressSummary{
		UserID:            userID,
		LessonsCompleted:  len(lessons),
		CompletionRate:    ratio(len(done), published),
		AverageScore:      averageScore(events),
		MasteredItems:     masteredItems(records),
		MasteryByCategory: masteryByCategory(records),
		WeakAreas:         weakAreas(records),
		Streak:            a.streaks.Snapshot(completionTimes(events)),
	}

	summary.CategoryCompletion, err = a.categoryCompletion(ctx, done)
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// BuildContext builds the counters achievement criteria are evaluated against
func (a *Aggregator) BuildContext(ctx context.Context, userID int64) (models.UserContext, error) {
	events, err := a.completions.ListByUser(ctx, userID)
	if err != nil {
		return models.UserContext{}, errors.Wrap(err, "failed to load completion events")
	}

	times := completionTimes(events)
	uc := models.UserContext{
		LessonsCompleted: len(distinctLessons(events)),
		StreakDays:       a.streaks.Snapshot(times).CurrentStreakDays,
		TotalXP:          totalXP(events),
		StudyDays:        a.streaks.StudyDays(times),
	}
	for _, e := range events {
		if e.Score == models.PerfectScore {
			uc.PerfectScoreCount++
		}
	}
	return uc, nil
}

// BuildBadgeContext builds the view badge criteria are evaluated against.
// Special events are supplied by the caller.
func (a *Aggregator) BuildBadgeContext(ctx context.Context, userID int64, specialEvents []string) (models.BadgeContext, error) {
	events, err := a.completions.ListByUser(ctx, userID)
	if err != nil {
		return models.BadgeContext{}, errors.Wrap(err, "failed to load completion events")
	}

	done, err := a.publishedLessons(ctx, distinctLessons(events))
	if err != nil {
		return models.BadgeContext{}, err
	}
	courses, err := a.completedCourses(ctx, done)
	if err != nil {
		return models.BadgeContext{}, err
	}
	return models.BadgeContext{
		CompletedCourses: courses,
		Level:            LevelForXP(totalXP(events)),
		Events:           specialEvents,
	}, nil
}

// LevelForXP returns the user level reached with xp experience points
func LevelForXP(xp int) int {
	if xp < 0 {
		xp = 0
	}
	return 1 + xp/XPPerLevel
}

// publishedLessons keeps the completed lessons that are still published
func (a *Aggregator) publishedLessons(ctx context.Context, lessons map[int64]struct{}) (map[int64]struct{}, error) {
	published := make(map[int64]struct{}, len(lessons))
	for lessonID := range lessons {
		ok, err := a.catalog.IsLessonPublished(ctx, lessonID)
		if err != nil {
			return nil, errors.Wrap(err, "failed to check lesson")
		}
		if !ok {
			a.logger.Debug("completed lesson not published", "lesson_id", lessonID)
			continue
		}
		published[lessonID] = struct{}{}
	}
	return published, nil
}

func (a *Aggregator) categoryCompletion(ctx context.Context, lessons map[int64]struct{}) (map[string]float64, error) {
	totals, err := a.catalog.LessonCountByCategory(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count lessons by category")
	}

	done := make(map[string]int)
	for lessonID := range lessons {
		category, err := a.catalog.LessonCategory(ctx, lessonID)
		if errors.Is(err, models.ErrNotFound) {
			a.logger.Debug("completed lesson no longer in catalog", "lesson_id", lessonID)
			continue
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to get lesson category")
		}
		done[category]++
	}

	completion := make(map[string]float64, len(totals))
	for category, total := range totals {
		completion[category] = ratio(done[category], total)
	}
	return completion, nil
}

func (a *Aggregator) completedCourses(ctx context.Context, lessons map[int64]struct{}) ([]int64, error) {
	totals, err := a.catalog.LessonCountByCourse(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count lessons by course")
	}

	done := make(map[int64]int)
	for lessonID := range lessons {
		courseID, err := a.catalog.LessonCourse(ctx, lessonID)
		if errors.Is(err, models.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to get lesson course")
		}
		done[courseID]++
	}

	courses := []int64{}
	for courseID, count := range done {
		if total := totals[courseID]; total > 0 && count >= total {
			courses = append(courses, courseID)
		}
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i] < courses[j] })
	return courses, nil
}

func distinctLessons(events []models.CompletionEvent) map[int64]struct{} {
	lessons := make(map[int64]struct{}, len(events))
	for _, e := range events {
		lessons[e.LessonID] = struct{}{}
	}
	return lessons
}

func completionTimes(events []models.CompletionEvent) []time.Time {
	times := make([]time.Time, len(events))
	for i, e := range events {
		times[i] = e.CompletedAt
	}
	return times
}

func averageScore(events []models.CompletionEvent) float64 {
	if len(events) == 0 {
		return 0
	}
	sum := 0
	for _, e := range events {
		sum += e.Score
	}
	return float64(sum) / float64(len(events))
}

func totalXP(events []models.CompletionEvent) int {
	xp := 0
	for _, e := range events {
		xp += e.XP()
	}
	return xp
}

// ratio returns part/whole capped at 1, or 0 for an empty whole
func ratio(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	r := float64(part) / float64(whole)
	if r > 1 {
		r = 1
	}
	return r
}

func masteredItems(records []models.MasteryRecord) int {
	n := 0
	for i := range records {
		if records[i].IsMastered() {
			n++
		}
	}
	return n
}

// masteryByCategory keys by kind first; the same category name can hold
// both vocabulary and grammar items
func masteryByCategory(records []models.MasteryRecord) map[models.ItemKind]map[string]float64 {
	sums := make(map[models.ItemKind]map[string]int)
	counts := make(map[models.ItemKind]map[string]int)
	for _, rec := range records {
		if sums[rec.ItemKind] == nil {
			sums[rec.ItemKind] = make(map[string]int)
			counts[rec.ItemKind] = make(map[string]int)
		}
		sums[rec.ItemKind][rec.Category] += rec.MasteryLevel
		counts[rec.ItemKind][rec.Category]++
	}

	means := make(map[models.ItemKind]map[string]float64, len(sums))
	for kind, byCategory := range sums {
		means[kind] = make(map[string]float64, len(byCategory))
		for category, sum := range byCategory {
			means[kind][category] = float64(sum) / float64(counts[kind][category])
		}
	}
	return means
}

// weakAreas groups records by kind and category and returns the groups
// whose mean level is below WeakAreaThreshold, weakest first
func weakAreas(records []models.MasteryRecord) []models.WeakArea {
	type group struct {
		kind     models.ItemKind
		category string
	}
	sums := make(map[group]int)
	counts := make(map[group]int)
	for _, rec := range records {
		g := group{kind: rec.ItemKind, category: rec.Category}
		sums[g] += rec.MasteryLevel
		counts[g]++
	}

	areas := []models.WeakArea{}
	for g, sum := range sums {
		mean := float64(sum) / float64(counts[g])
		if mean >= WeakAreaThreshold {
			continue
		}
		areas = append(areas, models.WeakArea{
			Category:  g.category,
			ItemKind:  g.kind,
			MeanLevel: mean,
			ItemCount: counts[g],
		})
	}

	sort.Slice(areas, func(i, j int) bool {
		if areas[i].MeanLevel != areas[j].MeanLevel {
			return areas[i].MeanLevel < areas[j].MeanLevel
		}
		if areas[i].Category != areas[j].Category {
			return areas[i].Category < areas[j].Category
		}
		return areas[i].ItemKind < areas[j].ItemKind
	})
	return areas
}
