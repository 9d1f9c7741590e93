package achievement

import (
	"github.com/sqlearn/progress-hub/internal/domain/shared"
)

// Type - категория достижения.
type Type string

const (
	TypeLesson   Type = "lesson"
	TypePractice Type = "practice"
	TypeQuiz     Type = "quiz"
	TypeStreak   Type = "streak"
	TypeTime     Type = "time"
	TypeScore    Type = "score"
	TypeSpecial  Type = "special"
)

// IsValid проверяет категорию.
func (t Type) IsValid() bool {
	switch t {
	case TypeLesson, TypePractice, TypeQuiz, TypeStreak, TypeTime, TypeScore, TypeSpecial:
		return true
	}
	return false
}

// Rarity - редкость достижения.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// IsValid проверяет редкость.
func (r Rarity) IsValid() bool {
	switch r {
	case RarityCommon, RarityRare, RarityEpic, RarityLegendary:
		return true
	}
	return false
}

// Definition - статическое описание достижения.
type Definition struct {
	ID          string `yaml:"id" json:"id"`
	Type        Type   `yaml:"type" json:"type"`
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description"`
	Icon        string `yaml:"icon" json:"icon"`
	RewardXP    int64  `yaml:"reward_xp" json:"reward_xp"`
	Points      int    `yaml:"points" json:"points"`
	Rarity      Rarity `yaml:"rarity" json:"rarity"`
	Rule        Rule   `yaml:"rule" json:"rule"`
}

// Validate проверяет определение.
func (d Definition) Validate() error {
	if d.ID == "" {
		return shared.Invalid("achievement", "Definition.Validate", "achievement id is required")
	}
	if !d.Type.IsValid() {
		return shared.Invalid("achievement", "Definition.Validate", "achievement %s: unknown type %q", d.ID, d.Type)
	}
	if !d.Rarity.IsValid() {
		return shared.Invalid("achievement", "Definition.Validate", "achievement %s: unknown rarity %q", d.ID, d.Rarity)
	}
	if d.RewardXP < 0 || d.Points < 0 {
		return shared.Invalid("achievement", "Definition.Validate", "achievement %s: negative reward", d.ID)
	}
	if err := d.Rule.Validate(); err != nil {
		return shared.WrapError("achievement", "Definition.Validate", shared.ErrInvalidInput, "achievement "+d.ID, err)
	}
	return nil
}
