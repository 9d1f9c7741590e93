// Package notification содержит доменную модель уведомлений движка прогресса.
// Движок только формирует уведомления из доменных событий; доставка
// (push, email) выполняется внешним каналом через интерфейс Sender.
package notification

import (
	"fmt"
	"time"

	"github.com/sqlearn/progress-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION TYPE
// ══════════════════════════════════════════════════════════════════════════════

// Type определяет тип уведомления.
type Type string

const (
	// TypeAchievement - получено достижение.
	// "🏆 Achievement Unlocked! You earned "First Steps"! +50 XP"
	TypeAchievement Type = "achievement"

	// TypeLevelUp - повышение уровня.
	// "⭐ Level Up! Congratulations! You reached Level 3!"
	TypeLevelUp Type = "level_up"

	// TypeStreakReminder - серия прервётся, если сегодня не заниматься.
	// "🔥 Keep Your Streak! You're on a 5 day streak!"
	TypeStreakReminder Type = "streak_reminder"

	// TypeStreakBroken - серия прервалась.
	// "💔 Streak Broken. Your 12 day streak ended."
	TypeStreakBroken Type = "streak_broken"
)

// Priority определяет приоритет уведомления.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
)

// DefaultPriority возвращает приоритет по умолчанию для данного типа.
func (t Type) DefaultPriority() Priority {
	switch t {
	case TypeAchievement, TypeLevelUp:
		return PriorityHigh
	case TypeStreakReminder:
		return PriorityNormal
	default:
		return PriorityLow
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION
// ══════════════════════════════════════════════════════════════════════════════

// Notification - сформированное уведомление для одного пользователя.
type Notification struct {
	ID          string            `json:"id"`
	RecipientID string            `json:"recipient_id"`
	Type        Type              `json:"type"`
	Priority    Priority          `json:"priority"`
	Title       string            `json:"title"`
	Message     string            `json:"message"`
	Data        map[string]string `json:"data,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// FromEvent строит уведомление по доменному событию. Для событий, о которых
// не нужно уведомлять, возвращает ok=false.
func FromEvent(id string, event shared.Event) (n *Notification, ok bool) {
	switch e := event.(type) {
	case shared.AchievementUnlockedEvent:
		n = newNotification(id, e.UserID, TypeAchievement,
			"🏆 Achievement Unlocked!",
			fmt.Sprintf("You earned %q! +%d XP", e.Title, e.RewardXP))
		n.Data["achievement_id"] = e.AchievementID
		n.Data["rarity"] = e.Rarity
	case shared.LevelUpEvent:
		n = newNotification(id, e.UserID, TypeLevelUp,
			"⭐ Level Up!",
			fmt.Sprintf("Congratulations! You reached Level %d!", e.NewLevel))
		n.Data["level"] = fmt.Sprint(e.NewLevel)
	case shared.StreakAtRiskEvent:
		n = newNotification(id, e.UserID, TypeStreakReminder,
			"🔥 Keep Your Streak!",
			fmt.Sprintf("You're on a %d day streak! Complete a lesson today to keep it going.", e.CurrentStreak))
		n.Data["streak"] = fmt.Sprint(e.CurrentStreak)
	case shared.StreakBrokenEvent:
		n = newNotification(id, e.UserID, TypeStreakBroken,
			"💔 Streak Broken",
			fmt.Sprintf("Your %d day streak ended. Start a new one today!", e.PreviousStreak))
		n.Data["streak"] = fmt.Sprint(e.PreviousStreak)
	default:
		return nil, false
	}
	n.CreatedAt = event.OccurredAt()
	return n, true
}

func newNotification(id, recipient string, t Type, title, message string) *Notification {
	return &Notification{
		ID:          id,
		RecipientID: recipient,
		Type:        t,
		Priority:    t.DefaultPriority(),
		Title:       title,
		Message:     message,
		Data:        map[string]string{"type": string(t)},
	}
}
