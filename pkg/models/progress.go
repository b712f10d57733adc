package models

// StreakSnapshot is derived on demand from completion history and never stored
type StreakSnapshot struct {
	CurrentStreakDays int `json:"current_streak_days"`
	LongestStreakDays int `json:"longest_streak_days"`
}

// WeakArea is a category whose mean mastery level is below the remedial threshold
type WeakArea struct {
	Category  string   `json:"category"`
	ItemKind  ItemKind `json:"item_kind"`
	MeanLevel float64  `json:"mean_level"`
	ItemCount int      `json:"item_count"`
}

// ProgressSummary rolls up a user's mastery records and completion history
type ProgressSummary struct {
	UserID           int64      `json:"user_id"`
	CompletionRate   float64    `json:"completion_rate"` // 0.0 - 1.0, published lessons only
	LessonsCompleted int        `json:"lessons_completed"`
	AverageScore     float64    `json:"average_score"`
	WeakAreas        []WeakArea `json:"weak_areas"`
	MasteredItems    int        `json:"mastered_items"`
	// Mean mastery level per item kind, then per category
	MasteryByCategory  map[ItemKind]map[string]float64 `json:"mastery_by_category"`
	CategoryCompletion map[string]float64              `json:"category_completion"`
	Streak             StreakSnapshot                  `json:"streak"`
}
