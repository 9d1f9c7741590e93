package progress

import (
	"math"

	"github.com/sqlearn/progress-hub/internal/domain/shared"
)

// XPPerLevelUnit - масштаб кривой уровней: уровень n начинается с (n-1)^2 * 100 XP.
const XPPerLevelUnit = 100

// LevelForXP возвращает уровень для суммарного XP: floor(sqrt(xp/100)) + 1.
func LevelForXP(xp int64) (int, error) {
	if xp < 0 {
		return 0, shared.ErrNegativeXP
	}
	return levelFor(xp), nil
}

// levelFor - версия LevelForXP без проверки знака.
func levelFor(xp int64) int {
	units := xp / XPPerLevelUnit
	n := int64(math.Sqrt(float64(units)))
	// Поправка на погрешность float64 для больших значений.
	for n*n > units {
		n--
	}
	for (n+1)*(n+1) <= units {
		n++
	}
	return int(n) + 1
}

// XPThresholdForLevel возвращает XP, необходимый для достижения уровня.
func XPThresholdForLevel(level int) (int64, error) {
	if level < 1 {
		return 0, shared.NewDomainError("progress", "XPThresholdForLevel", shared.ErrValueOutOfRange, "level must be at least 1")
	}
	return thresholdFor(level), nil
}

func thresholdFor(level int) int64 {
	n := int64(level - 1)
	return n * n * XPPerLevelUnit
}

// LevelProgress описывает положение ученика внутри текущего уровня.
type LevelProgress struct {
	// Level - текущий уровень.
	Level int `json:"level"`

	// CurrentXP - суммарный XP.
	CurrentXP int64 `json:"current_xp"`

	// LevelStartXP - порог текущего уровня.
	LevelStartXP int64 `json:"level_start_xp"`

	// NextLevelXP - порог следующего уровня.
	NextLevelXP int64 `json:"next_level_xp"`

	// XPInCurrentLevel - сколько XP набрано сверх порога текущего уровня.
	XPInCurrentLevel int64 `json:"xp_in_current_level"`

	// XPNeededForLevel - ширина текущего уровня в XP.
	XPNeededForLevel int64 `json:"xp_needed_for_level"`

	// XPToNextLevel - сколько XP осталось до следующего уровня.
	XPToNextLevel int64 `json:"xp_to_next_level"`

	// Percent - прогресс внутри уровня, 0..100.
	Percent float64 `json:"percent"`
}

// LevelProgressFor вычисляет прогресс уровня для суммарного XP.
func LevelProgressFor(xp int64) (LevelProgress, error) {
	if xp < 0 {
		return LevelProgress{}, shared.ErrNegativeXP
	}

	level := levelFor(xp)
	start := thresholdFor(level)
	next := thresholdFor(level + 1)
	span := next - start

	percent := 0.0
	if span > 0 {
		percent = float64(xp-start) / float64(span) * 100
	}
	percent = math.Max(0, math.Min(100, percent))

	return LevelProgress{
		Level:            level,
		CurrentXP:        xp,
		LevelStartXP:     start,
		NextLevelXP:      next,
		XPInCurrentLevel: xp - start,
		XPNeededForLevel: span,
		XPToNextLevel:    next - xp,
		Percent:          percent,
	}, nil
}
