package mastery

import (
	"github.com/example/lingotrack/pkg/models"
)

// Policy holds the promotion and demotion thresholds of one item kind
type Policy struct {
	// Accuracy at or above which the level goes up
	PromoteAccuracy float64
	// Accuracy strictly below which the level goes down
	DemoteAccuracy float64
	// Attempts required at the current level before it may change
	MinAttempts int
}

// Policies maps every tracked item kind to its thresholds
type Policies map[models.ItemKind]Policy

// DefaultPolicies returns the stock thresholds
func DefaultPolicies() Policies {
	return Policies{
		models.ItemKindVocabulary: {
			PromoteAccuracy: 0.90,
			DemoteAccuracy:  0.60,
			MinAttempts:     5,
		},
		models.ItemKindGrammar: {
			PromoteAccuracy: 0.85,
			DemoteAccuracy:  0.50,
			MinAttempts:     4,
		},
	}
}

// Apply records one attempt on rec and moves its level by at most one step.
// A level may only change once MinAttempts have been made at the current level,
// so crossing a threshold yields a single step rather than one per attempt.
func (p Policy) Apply(rec *models.MasteryRecord, isCorrect bool) {
	rec.TotalAttempts++
	if isCorrect {
		rec.CorrectAttempts++
	}
	rec.AttemptsAtLevel++

	if rec.AttemptsAtLevel < p.MinAttempts {
		return
	}

	accuracy := rec.Accuracy()
	switch {
	case accuracy >= p.PromoteAccuracy && rec.MasteryLevel < models.MaxMasteryLevel:
		rec.MasteryLevel++
		rec.AttemptsAtLevel = 0
	case accuracy < p.DemoteAccuracy && rec.MasteryLevel > models.MinMasteryLevel:
		rec.MasteryLevel--
		rec.AttemptsAtLevel = 0
	}
}
