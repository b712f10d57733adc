package achievement

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/example/lingotrack/pkg/models"
)

// Entry is one catalog row as written in a catalog file
type Entry struct {
	ID          string              `yaml:"id"`
	Title       string              `yaml:"title"`
	Description string              `yaml:"description"`
	Type        models.CriteriaType `yaml:"type"`
	Criteria    Params              `yaml:"criteria"`
	RewardXP    int                 `yaml:"reward_xp,omitempty"`
	Active      *bool               `yaml:"active,omitempty"` // Defaults to true
}

// Document is the layout of a YAML catalog file
type Document struct {
	Achievements []Entry `yaml:"achievements"`
	Badges       []Entry `yaml:"badges"`
}

// LoadYAML reads a catalog from a YAML file
func LoadYAML(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read catalog file")
	}
	return ParseYAML(data)
}

// ParseYAML builds a catalog from YAML content
func ParseYAML(data []byte) (*Catalog, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "failed to parse catalog")
	}
	return FromEntries(doc.Achievements, doc.Badges)
}

// FromEntries converts raw entries to typed definitions and builds a catalog
func FromEntries(achievements, badges []Entry) (*Catalog, error) {
	achievementDefs := make([]models.AchievementDefinition, 0, len(achievements))
	for _, e := range achievements {
		criteria, err := BuildCriteria(e.Type, e.Criteria)
		if err != nil {
			return nil, errors.Wrapf(err, "achievement %q", e.ID)
		}
		achievementDefs = append(achievementDefs, models.AchievementDefinition{
			ID:          e.ID,
			Title:       e.Title,
			Description: e.Description,
			Type:        e.Type,
			Criteria:    criteria,
			RewardXP:    e.RewardXP,
			Active:      e.active(),
		})
	}

	badgeDefs := make([]models.BadgeDefinition, 0, len(badges))
	for _, e := range badges {
		criteria, err := BuildBadgeCriteria(e.Type, e.Criteria)
		if err != nil {
			return nil, errors.Wrapf(err, "badge %q", e.ID)
		}
		badgeDefs = append(badgeDefs, models.BadgeDefinition{
			ID:          e.ID,
			Title:       e.Title,
			Description: e.Description,
			Type:        e.Type,
			Criteria:    criteria,
			Active:      e.active(),
		})
	}

	return NewCatalog(achievementDefs, badgeDefs)
}

func (e Entry) active() bool {
	return e.Active == nil || *e.Active
}
