package achievement

import (
	"github.com/pkg/errors"

	"github.com/example/lingotrack/pkg/models"
)

// Params are the typed predicate parameters of a catalog entry.
// Each criteria type reads only the field it needs.
type Params struct {
	Count    int    `yaml:"count,omitempty"`
	Days     int    `yaml:"days,omitempty"`
	XP       int    `yaml:"xp,omitempty"`
	CourseID int64  `yaml:"course_id,omitempty"`
	Level    int    `yaml:"level,omitempty"`
	Event    string `yaml:"event,omitempty"`
}

// LessonCompletion matches once enough distinct lessons are completed
type LessonCompletion struct{ Count int }

func (c LessonCompletion) Matches(uc models.UserContext) bool { return uc.LessonsCompleted >= c.Count }

// Streak matches once the current streak is long enough
type Streak struct{ Days int }

func (c Streak) Matches(uc models.UserContext) bool { return uc.StreakDays >= c.Days }

// TotalXP matches once enough experience has been earned
type TotalXP struct{ XP int }

func (c TotalXP) Matches(uc models.UserContext) bool { return uc.TotalXP >= c.XP }

// PerfectScore matches once enough lessons were completed without mistakes
type PerfectScore struct{ Count int }

func (c PerfectScore) Matches(uc models.UserContext) bool { return uc.PerfectScoreCount >= c.Count }

// StudyDays matches once the user studied on enough distinct days
type StudyDays struct{ Days int }

func (c StudyDays) Matches(uc models.UserContext) bool { return uc.StudyDays >= c.Days }

// CourseCompletion matches when a specific course is completed
type CourseCompletion struct{ CourseID int64 }

func (c CourseCompletion) MatchesBadge(bc models.BadgeContext) bool {
	for _, id := range bc.CompletedCourses {
		if id == c.CourseID {
			return true
		}
	}
	return false
}

// LevelReached matches once the user level reaches a threshold
type LevelReached struct{ Level int }

func (c LevelReached) MatchesBadge(bc models.BadgeContext) bool { return bc.Level >= c.Level }

// SpecialEvent matches when the user took part in a named event
type SpecialEvent struct{ Event string }

func (c SpecialEvent) MatchesBadge(bc models.BadgeContext) bool {
	for _, e := range bc.Events {
		if e == c.Event {
			return true
		}
	}
	return false
}

// BuildCriteria turns an achievement type and its parameters into a predicate
func BuildCriteria(t models.CriteriaType, p Params) (models.Criteria, error) {
	var (
		criteria  models.Criteria
		threshold int
	)
	switch t {
	case models.CriteriaLessonCompletion:
		criteria, threshold = LessonCompletion{Count: p.Count}, p.Count
	case models.CriteriaStreak:
		criteria, threshold = Streak{Days: p.Days}, p.Days
	case models.CriteriaTotalXP:
		criteria, threshold = TotalXP{XP: p.XP}, p.XP
	case models.CriteriaPerfectScore:
		criteria, threshold = PerfectScore{Count: p.Count}, p.Count
	case models.CriteriaStudyDays:
		criteria, threshold = StudyDays{Days: p.Days}, p.Days
	default:
		return nil, errors.Wrapf(models.ErrValidation, "unknown achievement type %q", string(t))
	}

	if threshold <= 0 {
		return nil, errors.Wrapf(models.ErrValidation, "%s needs a positive threshold", t)
	}
	return criteria, nil
}

// BuildBadgeCriteria turns a badge type and its parameters into a predicate
func BuildBadgeCriteria(t models.CriteriaType, p Params) (models.BadgeCriteria, error) {
	switch t {
	case models.CriteriaCourseCompletion:
		if p.CourseID <= 0 {
			return nil, errors.Wrapf(models.ErrValidation, "%s needs a course_id", t)
		}
		return CourseCompletion{CourseID: p.CourseID}, nil
	case models.CriteriaLevelReached:
		if p.Level <= 0 {
			return nil, errors.Wrapf(models.ErrValidation, "%s needs a positive level", t)
		}
		return LevelReached{Level: p.Level}, nil
	case models.CriteriaSpecialEvent:
		if p.Event == "" {
			return nil, errors.Wrapf(models.ErrValidation, "%s needs an event name", t)
		}
		return SpecialEvent{Event: p.Event}, nil
	}
	return nil, errors.Wrapf(models.ErrValidation, "unknown badge type %q", string(t))
}
