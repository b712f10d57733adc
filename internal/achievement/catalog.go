package achievement

import (
	"github.com/pkg/errors"

	"github.com/example/lingotrack/pkg/models"
)

// Catalog is an immutable snapshot of achievement and badge definitions.
// It is built once at startup and shared read-only.
type Catalog struct {
	achievements []models.AchievementDefinition
	badges       []models.BadgeDefinition
}

// NewCatalog validates and copies the given definitions
func NewCatalog(achievements []models.AchievementDefinition, badges []models.BadgeDefinition) (*Catalog, error) {
	seen := make(map[string]bool)
	for _, def := range achievements {
		if def.ID == "" {
			return nil, errors.Wrap(models.ErrValidation, "achievement without id")
		}
		if seen[def.ID] {
			return nil, errors.Wrapf(models.ErrValidation, "duplicate achievement id %q", def.ID)
		}
		if def.Criteria == nil {
			return nil, errors.Wrapf(models.ErrValidation, "achievement %q has no criteria", def.ID)
		}
		seen[def.ID] = true
	}

	seen = make(map[string]bool)
	for _, def := range badges {
		if def.ID == "" {
			return nil, errors.Wrap(models.ErrValidation, "badge without id")
		}
		if seen[def.ID] {
			return nil, errors.Wrapf(models.ErrValidation, "duplicate badge id %q", def.ID)
		}
		if def.Criteria == nil {
			return nil, errors.Wrapf(models.ErrValidation, "badge %q has no criteria", def.ID)
		}
		seen[def.ID] = true
	}

	return &Catalog{
		achievements: append([]models.AchievementDefinition(nil), achievements...),
		badges:       append([]models.BadgeDefinition(nil), badges...),
	}, nil
}

// Achievements returns a copy of all achievement definitions
func (c *Catalog) Achievements() []models.AchievementDefinition {
	return append([]models.AchievementDefinition(nil), c.achievements...)
}

// Badges returns a copy of all badge definitions
func (c *Catalog) Badges() []models.BadgeDefinition {
	return append([]models.BadgeDefinition(nil), c.badges...)
}

// Achievement looks up an achievement definition by id
func (c *Catalog) Achievement(id string) (models.AchievementDefinition, bool) {
	for _, def := range c.achievements {
		if def.ID == id {
			return def, true
		}
	}
	return models.AchievementDefinition{}, false
}

// Badge looks up a badge definition by id
func (c *Catalog) Badge(id string) (models.BadgeDefinition, bool) {
	for _, def := range c.badges {
		if def.ID == id {
			return def, true
		}
	}
	return models.BadgeDefinition{}, false
}
