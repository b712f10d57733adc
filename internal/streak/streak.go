package streak

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/example/lingotrack/pkg/models"
)

// CompletionSource lists when a user completed lessons
type CompletionSource interface {
	ListCompletionTimes(ctx context.Context, userID int64) ([]time.Time, error)
}

// Calculator derives streaks from the completion history
type Calculator struct {
	source   CompletionSource
	location *time.Location
	now      func() time.Time
}

// NewCalculator creates a calculator that draws day boundaries in loc (UTC when nil)
func NewCalculator(source CompletionSource, loc *time.Location) *Calculator {
	if loc == nil {
		loc = time.UTC
	}
	return &Calculator{source: source, location: loc, now: time.Now}
}

// WithClock replaces the time source used to decide what "today" is
func (c *Calculator) WithClock(now func() time.Time) *Calculator {
	c.now = now
	return c
}

// Compute returns the current and longest streak of a user
func (c *Calculator) Compute(ctx context.Context, userID int64) (models.StreakSnapshot, error) {
	times, err := c.source.ListCompletionTimes(ctx, userID)
	if err != nil {
		return models.StreakSnapshot{}, errors.Wrap(err, "failed to load completion history")
	}
	return FromDates(Dates(times, c.location), c.today()), nil
}

// StudyDays returns the number of distinct days with at least one completion
func (c *Calculator) StudyDays(times []time.Time) int {
	return len(Dates(times, c.location))
}

// Snapshot computes a streak from timestamps already loaded by the caller
func (c *Calculator) Snapshot(times []time.Time) models.StreakSnapshot {
	return FromDates(Dates(times, c.location), c.today())
}

func (c *Calculator) today() time.Time {
	return day(c.now(), c.location)
}

// Dates converts timestamps to distinct calendar dates in loc, newest first.
// Each date is midnight UTC of the local calendar day.
func Dates(times []time.Time, loc *time.Location) []time.Time {
	seen := make(map[time.Time]struct{}, len(times))
	dates := make([]time.Time, 0, len(times))
	for _, ts := range times {
		d := day(ts, loc)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		dates = append(dates, d)
	}

	sort.Slice(dates, func(i, j int) bool {
		return dates[i].After(dates[j])
	})
	return dates
}

// FromDates computes a streak from distinct dates sorted newest first.
// The current streak only counts when the newest date is today or yesterday.
func FromDates(dates []time.Time, today time.Time) models.StreakSnapshot {
	if len(dates) == 0 {
		return models.StreakSnapshot{}
	}

	longest, run := 1, 1
	for i := 1; i < len(dates); i++ {
		if consecutive(dates[i], dates[i-1]) {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}

	current := 0
	if dates[0].Equal(today) || consecutive(dates[0], today) {
		current = 1
		for i := 1; i < len(dates) && consecutive(dates[i], dates[i-1]); i++ {
			current++
		}
	}

	return models.StreakSnapshot{
		CurrentStreakDays: current,
		LongestStreakDays: longest,
	}
}

// consecutive reports whether later is the calendar day right after earlier
func consecutive(earlier, later time.Time) bool {
	return earlier.AddDate(0, 0, 1).Equal(later)
}

func day(ts time.Time, loc *time.Location) time.Time {
	y, m, d := ts.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
