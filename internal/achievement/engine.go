package achievement

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/example/lingotrack/pkg/models"
)

// Notification kinds emitted on a new award
const (
	KindAchievementUnlocked = "achievement_unlocked"
	KindBadgeUnlocked       = "badge_unlocked"
)

// AwardStore persists awards. Insert calls must be atomic insert-if-absent
// and report false when the (user, definition) pair already exists.
type AwardStore interface {
	ListAchievementIDs(ctx context.Context, userID int64) ([]string, error)
	ListBadgeIDs(ctx context.Context, userID int64) ([]string, error)
	InsertAchievementIfAbsent(ctx context.Context, award *models.AchievementAward) (bool, error)
	InsertBadgeIfAbsent(ctx context.Context, award *models.BadgeAward) (bool, error)
}

// Notifier hands a notification off without waiting for delivery
type Notifier interface {
	Send(userID int64, kind string, payload map[string]string)
}

// Engine evaluates the catalog against a user and awards at most once
type Engine struct {
	catalog  *Catalog
	store    AwardStore
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewEngine creates a new engine
func NewEngine(catalog *Catalog, store AwardStore, notifier Notifier) *Engine {
	return &Engine{
		catalog:  catalog,
		store:    store,
		notifier: notifier,
		logger:   slog.Default().With("component", "achievement"),
		now:      time.Now,
	}
}

// Evaluate awards every active achievement whose criteria uc satisfies and
// the user does not hold yet. It returns only the awards made by this call.
func (e *Engine) Evaluate(ctx context.Context, userID int64, uc models.UserContext) ([]models.AchievementAward, error) {
	held, err := e.store.ListAchievementIDs(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list awarded achievements")
	}
	awarded := toSet(held)
	snapshot := marshalSnapshot(uc)

	unlocked := []models.AchievementAward{}
	for _, def := range e.catalog.Achievements() {
		if !def.Active || awarded[def.ID] || !def.Criteria.Matches(uc) {
			continue
		}

		award := &models.AchievementAward{
			UserID:           userID,
			DefinitionID:     def.ID,
			UnlockedAt:       e.now(),
			ProgressSnapshot: snapshot,
		}
		inserted, err := e.store.InsertAchievementIfAbsent(ctx, award)
		if err != nil {
			return unlocked, errors.Wrapf(err, "failed to award achievement %q", def.ID)
		}
		if !inserted {
			e.logger.Debug("achievement already awarded", "user_id", userID, "definition_id", def.ID)
			continue
		}

		e.logger.Info("achievement unlocked", "user_id", userID, "definition_id", def.ID)
		e.notifier.Send(userID, KindAchievementUnlocked, map[string]string{
			"id":          def.ID,
			"title":       def.Title,
			"description": def.Description,
			"reward_xp":   strconv.Itoa(def.RewardXP),
		})
		unlocked = append(unlocked, *award)
	}
	return unlocked, nil
}

// EvaluateBadges is the badge counterpart of Evaluate
func (e *Engine) EvaluateBadges(ctx context.Context, userID int64, bc models.BadgeContext) ([]models.BadgeAward, error) {
	held, err := e.store.ListBadgeIDs(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list awarded badges")
	}
	awarded := toSet(held)
	snapshot := marshalSnapshot(bc)

	unlocked := []models.BadgeAward{}
	for _, def := range e.catalog.Badges() {
		if !def.Active || awarded[def.ID] || !def.Criteria.MatchesBadge(bc) {
			continue
		}

		award := &models.BadgeAward{
			UserID:           userID,
			DefinitionID:     def.ID,
			UnlockedAt:       e.now(),
			ProgressSnapshot: snapshot,
		}
		inserted, err := e.store.InsertBadgeIfAbsent(ctx, award)
		if err != nil {
			return unlocked, errors.Wrapf(err, "failed to award badge %q", def.ID)
		}
		if !inserted {
			e.logger.Debug("badge already awarded", "user_id", userID, "definition_id", def.ID)
			continue
		}

		e.logger.Info("badge unlocked", "user_id", userID, "definition_id", def.ID)
		e.notifier.Send(userID, KindBadgeUnlocked, map[string]string{
			"id":          def.ID,
			"title":       def.Title,
			"description": def.Description,
		})
		unlocked = append(unlocked, *award)
	}
	return unlocked, nil
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func marshalSnapshot(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
