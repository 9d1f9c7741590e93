// Package eventhandler содержит обработчики доменных событий.
// Обработчики реагируют на уже зафиксированные изменения и запускают
// побочные эффекты, такие как отправка уведомлений.
package eventhandler

import (
	"context"
	"time"

	"github.com/sqlearn/progress-hub/internal/domain/notification"
	"github.com/sqlearn/progress-hub/internal/domain/shared"
	"github.com/sqlearn/progress-hub/pkg/circuitbreaker"
	"github.com/sqlearn/progress-hub/pkg/logger"
	"github.com/sqlearn/progress-hub/pkg/timeutil"
)

// ═══════════════════════════════════════════════════════════════════════════
// NOTIFICATION FORWARDER
// Превращает события (достижение, уровень, серия) в уведомления и передаёт
// их во внешний канал. Доставка best-effort: ошибка канала логируется и
// не возвращается в шину, а при серии ошибок breaker перестаёт нагружать канал.
// ═══════════════════════════════════════════════════════════════════════════

// IDGenerator генерирует ID уведомлений.
type IDGenerator interface {
	GenerateID() string
}

// ForwarderConfig содержит конфигурацию обработчика.
type ForwarderConfig struct {
	// QuietHoursEnabled - не отправлять несрочные уведомления ночью.
	QuietHoursEnabled bool

	// Location - часовой пояс для тихих часов.
	Location *time.Location

	// SendTimeout ограничивает один вызов канала.
	SendTimeout time.Duration

	Clock timeutil.Clock
}

// DefaultForwarderConfig возвращает конфигурацию по умолчанию.
func DefaultForwarderConfig() ForwarderConfig {
	return ForwarderConfig{
		QuietHoursEnabled: true,
		Location:          time.UTC,
		SendTimeout:       5 * time.Second,
		Clock:             timeutil.SystemClock{},
	}
}

// NotificationForwarder пересылает уведомления о событиях в Sender.
type NotificationForwarder struct {
	sender  notification.Sender
	breaker *circuitbreaker.CircuitBreaker
	ids     IDGenerator
	log     *logger.Logger
	config  ForwarderConfig
}

// NewNotificationForwarder создаёт обработчик. nil breaker означает
// circuitbreaker.NotificationBreaker.
func NewNotificationForwarder(
	sender notification.Sender,
	breaker *circuitbreaker.CircuitBreaker,
	ids IDGenerator,
	log *logger.Logger,
	config ForwarderConfig,
) *NotificationForwarder {
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(logger.Component("notification_forwarder"))
	if breaker == nil {
		breaker = circuitbreaker.NotificationBreaker(func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		})
	}
	defaults := DefaultForwarderConfig()
	if config.Location == nil {
		config.Location = defaults.Location
	}
	if config.SendTimeout <= 0 {
		config.SendTimeout = defaults.SendTimeout
	}
	if config.Clock == nil {
		config.Clock = defaults.Clock
	}
	return &NotificationForwarder{
		sender:  sender,
		breaker: breaker,
		ids:     ids,
		log:     log,
		config:  config,
	}
}

// Events возвращает типы событий, на которые нужно подписать обработчик.
func (h *NotificationForwarder) Events() []shared.EventType {
	return []shared.EventType{
		shared.EventAchievementUnlocked,
		shared.EventLevelUp,
		shared.EventStreakAtRisk,
		shared.EventStreakBroken,
	}
}

// Subscribe подписывает обработчик на его события.
func (h *NotificationForwarder) Subscribe(bus shared.EventSubscriber) error {
	for _, t := range h.Events() {
		if err := bus.Subscribe(t, h.Handle); err != nil {
			return err
		}
	}
	return nil
}

// Handle реализует shared.EventHandler. Всегда возвращает nil:
// недоставленное уведомление не должно влиять на другие обработчики.
func (h *NotificationForwarder) Handle(event shared.Event) error {
	n, ok := notification.FromEvent(h.ids.GenerateID(), event)
	if !ok {
		return nil
	}

	if h.config.QuietHoursEnabled && n.Priority < notification.PriorityHigh &&
		!timeutil.IsSafeNotificationTime(h.config.Clock.Now(), h.config.Location) {
		h.log.Debug("notification skipped in quiet hours",
			logger.UserID(n.RecipientID),
			logger.String("type", string(n.Type)),
		)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.SendTimeout)
	defer cancel()

	err := h.breaker.Execute(ctx, func(ctx context.Context) error {
		return h.sender.Send(ctx, n)
	})
	switch {
	case err == nil:
		h.log.Debug("notification sent",
			logger.UserID(n.RecipientID),
			logger.String("type", string(n.Type)),
		)
	case circuitbreaker.IsRejected(err):
		h.log.Warn("notification dropped, sender circuit open",
			logger.UserID(n.RecipientID),
			logger.String("type", string(n.Type)),
		)
	default:
		h.log.Error("notification delivery failed",
			logger.UserID(n.RecipientID),
			logger.String("type", string(n.Type)),
			logger.Err(err),
		)
	}
	return nil
}
