package models

import (
	"time"

	"github.com/pkg/errors"
)

// ItemKind distinguishes the two kinds of practice items tracked for mastery.
type ItemKind string

const (
	ItemKindVocabulary ItemKind = "vocabulary"
	ItemKindGrammar    ItemKind = "grammar"
)

// Validate rejects anything that is not a known item kind.
func (k ItemKind) Validate() error {
	switch k {
	case ItemKindVocabulary, ItemKindGrammar:
		return nil
	}
	return errors.Wrapf(ErrValidation, "unknown item kind %q", string(k))
}

// Mastery and interval bounds.
const (
	MinMasteryLevel = 0
	MaxMasteryLevel = 5

	MinReviewIntervalDays = 1
	MaxReviewIntervalDays = 30
)

// MasteryRecord tracks a user's command of a single vocabulary or grammar item
type MasteryRecord struct {
	ID                 int64     `json:"id" db:"id"`
	UserID             int64     `json:"user_id" db:"user_id"`
	ItemID             int64     `json:"item_id" db:"item_id"`
	ItemKind           ItemKind  `json:"item_kind" db:"item_kind"`
	Category           string    `json:"category" db:"category"`                   // Vocabulary topic or grammar type
	MasteryLevel       int       `json:"mastery_level" db:"mastery_level"`         // 0-5
	CorrectAttempts    int       `json:"correct_attempts" db:"correct_attempts"`   // Never decreases
	TotalAttempts      int       `json:"total_attempts" db:"total_attempts"`       // Never decreases
	AttemptsAtLevel    int       `json:"attempts_at_level" db:"attempts_at_level"` // Attempts since the last level change
	LastPracticedAt    time.Time `json:"last_practiced_at" db:"last_practiced_at"`
	NextReviewAt       time.Time `json:"next_review_at" db:"next_review_at"`
	ReviewIntervalDays int       `json:"review_interval_days" db:"review_interval_days"` // 1-30
	Version            int64     `json:"version" db:"version"`                           // Optimistic concurrency token
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// NewMasteryRecord returns the initial state of a record before its first attempt.
func NewMasteryRecord(userID, itemID int64, kind ItemKind) *MasteryRecord {
	return &MasteryRecord{
		UserID:             userID,
		ItemID:             itemID,
		ItemKind:           kind,
		MasteryLevel:       MinMasteryLevel,
		ReviewIntervalDays: MinReviewIntervalDays,
	}
}

// Accuracy returns correct/total, or 0 when nothing has been attempted.
func (r *MasteryRecord) Accuracy() float64 {
	if r.TotalAttempts == 0 {
		return 0
	}
	return float64(r.CorrectAttempts) / float64(r.TotalAttempts)
}

// IsMastered reports whether the record has reached the top level.
func (r *MasteryRecord) IsMastered() bool {
	return r.MasteryLevel >= MaxMasteryLevel
}
