package streak

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/lingotrack/pkg/models"
)

type fakeSource []time.Time

func (f fakeSource) ListCompletionTimes(_ context.Context, _ int64) ([]time.Time, error) {
	return f, nil
}

var today = time.Date(2026, time.July, 15, 0, 0, 0, 0, time.UTC)

func daysAgo(n int) time.Time {
	return today.AddDate(0, 0, -n)
}

func TestFromDates(t *testing.T) {
	tests := []struct {
		name  string
		dates []time.Time
		want  models.StreakSnapshot
	}{
		{"no history", nil, models.StreakSnapshot{}},
		{"three days ending today", []time.Time{daysAgo(0), daysAgo(1), daysAgo(2)}, models.StreakSnapshot{CurrentStreakDays: 3, LongestStreakDays: 3}},
		{"ending yesterday still counts", []time.Time{daysAgo(1), daysAgo(2)}, models.StreakSnapshot{CurrentStreakDays: 2, LongestStreakDays: 2}},
		{"last activity two days ago", []time.Time{daysAgo(2)}, models.StreakSnapshot{CurrentStreakDays: 0, LongestStreakDays: 1}},
		{
			"longest run in the past",
			[]time.Time{daysAgo(0), daysAgo(5), daysAgo(6), daysAgo(7), daysAgo(8)},
			models.StreakSnapshot{CurrentStreakDays: 1, LongestStreakDays: 4},
		},
		{
			"gap breaks current streak",
			[]time.Time{daysAgo(0), daysAgo(1), daysAgo(3), daysAgo(4), daysAgo(5)},
			models.StreakSnapshot{CurrentStreakDays: 2, LongestStreakDays: 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromDates(tt.dates, today)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, got.CurrentStreakDays, got.LongestStreakDays)
		})
	}
}

func TestDates_DistinctAndSorted(t *testing.T) {
	times := []time.Time{
		time.Date(2026, time.July, 13, 8, 0, 0, 0, time.UTC),
		time.Date(2026, time.July, 15, 23, 0, 0, 0, time.UTC),
		time.Date(2026, time.July, 13, 20, 0, 0, 0, time.UTC),
		time.Date(2026, time.July, 14, 1, 0, 0, 0, time.UTC),
	}

	dates := Dates(times, time.UTC)
	require.Len(t, dates, 3)
	assert.Equal(t, daysAgo(0), dates[0])
	assert.Equal(t, daysAgo(1), dates[1])
	assert.Equal(t, daysAgo(2), dates[2])
}

func TestDates_Location(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	// 22:30 UTC on the 14th is already the 15th at UTC+3
	times := []time.Time{time.Date(2026, time.July, 14, 22, 30, 0, 0, time.UTC)}

	assert.Equal(t, []time.Time{daysAgo(0)}, Dates(times, loc))
	assert.Equal(t, []time.Time{daysAgo(1)}, Dates(times, time.UTC))
}

func TestCalculator_Compute(t *testing.T) {
	source := fakeSource{
		time.Date(2026, time.July, 15, 9, 0, 0, 0, time.UTC),
		time.Date(2026, time.July, 15, 10, 0, 0, 0, time.UTC),
		time.Date(2026, time.July, 14, 21, 0, 0, 0, time.UTC),
		time.Date(2026, time.July, 13, 7, 0, 0, 0, time.UTC),
	}
	calc := NewCalculator(source, nil)
	calc.now = func() time.Time { return time.Date(2026, time.July, 15, 18, 0, 0, 0, time.UTC) }

	snapshot, err := calc.Compute(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, models.StreakSnapshot{CurrentStreakDays: 3, LongestStreakDays: 3}, snapshot)
	assert.Equal(t, 3, calc.StudyDays(source))
}
