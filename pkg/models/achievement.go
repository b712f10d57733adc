package models

import "time"

// CriteriaType names the predicate family of a catalog entry.
type CriteriaType string

// Achievement criteria types
const (
	CriteriaLessonCompletion CriteriaType = "LESSON_COMPLETION"
	CriteriaStreak           CriteriaType = "STREAK"
	CriteriaTotalXP          CriteriaType = "TOTAL_XP"
	CriteriaPerfectScore     CriteriaType = "PERFECT_SCORE"
	CriteriaStudyDays        CriteriaType = "STUDY_DAYS"
)

// Badge criteria types
const (
	CriteriaCourseCompletion CriteriaType = "COURSE_COMPLETION"
	CriteriaLevelReached     CriteriaType = "LEVEL_REACHED"
	CriteriaSpecialEvent     CriteriaType = "SPECIAL_EVENT"
)

// UserContext is the aggregated view of a user that achievement criteria are evaluated against
type UserContext struct {
	LessonsCompleted  int `json:"lessons_completed"`
	StreakDays        int `json:"streak_days"`
	TotalXP           int `json:"total_xp"`
	PerfectScoreCount int `json:"perfect_score_count"`
	StudyDays         int `json:"study_days"`
}

// BadgeContext is the view of a user that badge criteria are evaluated against
type BadgeContext struct {
	CompletedCourses []int64  `json:"completed_courses"`
	Level            int      `json:"level"`
	Events           []string `json:"events"`
}

// Criteria is satisfied by every achievement predicate.
type Criteria interface {
	Matches(uc UserContext) bool
}

// BadgeCriteria is satisfied by every badge predicate.
type BadgeCriteria interface {
	MatchesBadge(bc BadgeContext) bool
}

// AchievementDefinition is a read-only catalog entry
type AchievementDefinition struct {
	ID          string       `json:"id" yaml:"id"`
	Title       string       `json:"title" yaml:"title"`
	Description string       `json:"description" yaml:"description"`
	Type        CriteriaType `json:"type" yaml:"type"`
	Criteria    Criteria     `json:"-" yaml:"-"`
	RewardXP    int          `json:"reward_xp" yaml:"reward_xp"`
	Active      bool         `json:"active" yaml:"active"`
}

// BadgeDefinition is a read-only catalog entry
type BadgeDefinition struct {
	ID          string        `json:"id" yaml:"id"`
	Title       string        `json:"title" yaml:"title"`
	Description string        `json:"description" yaml:"description"`
	Type        CriteriaType  `json:"type" yaml:"type"`
	Criteria    BadgeCriteria `json:"-" yaml:"-"`
	Active      bool          `json:"active" yaml:"active"`
}

// AchievementAward records that a user unlocked an achievement. Unique per (UserID, DefinitionID).
type AchievementAward struct {
	ID               int64     `json:"id" db:"id"`
	UserID           int64     `json:"user_id" db:"user_id"`
	DefinitionID     string    `json:"definition_id" db:"definition_id"`
	UnlockedAt       time.Time `json:"unlocked_at" db:"unlocked_at"`
	ProgressSnapshot string    `json:"progress_snapshot" db:"progress_snapshot"` // JSON of the evaluated context
}

// BadgeAward records that a user earned a badge. Unique per (UserID, DefinitionID).
type BadgeAward struct {
	ID               int64     `json:"id" db:"id"`
	UserID           int64     `json:"user_id" db:"user_id"`
	DefinitionID     string    `json:"definition_id" db:"definition_id"`
	UnlockedAt       time.Time `json:"unlocked_at" db:"unlocked_at"`
	ProgressSnapshot string    `json:"progress_snapshot" db:"progress_snapshot"`
}
