package models

import "time"

// PerfectScore is the score of a lesson completed without mistakes.
const PerfectScore = 100

// CompletionEvent is written once per lesson completion and never modified
type CompletionEvent struct {
	ID          int64         `json:"id" db:"id"`
	UserID      int64         `json:"user_id" db:"user_id"`
	LessonID    int64         `json:"lesson_id" db:"lesson_id"`
	Score       int           `json:"score" db:"score"`  // 0-100
	TimeSpent   time.Duration `json:"time_spent" db:"-"` // Stored as whole seconds
	CompletedAt time.Time     `json:"completed_at" db:"completed_at"`
}

// XP returns the experience points earned by this completion.
func (e CompletionEvent) XP() int {
	xp := 10 + e.Score/10
	if e.Score >= PerfectScore {
		xp += 5
	}
	return xp
}
