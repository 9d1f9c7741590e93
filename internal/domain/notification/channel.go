package notification

import (
	"context"
)

// Sender доставляет уведомления во внешний канал (push-сервис, email).
// Реализация может вернуть shared.ErrUnavailable для временных сбоев.
type Sender interface {
	Send(ctx context.Context, n *Notification) error
}

// SenderFunc адаптирует функцию к интерфейсу Sender.
type SenderFunc func(ctx context.Context, n *Notification) error

// Send реализует Sender.
func (f SenderFunc) Send(ctx context.Context, n *Notification) error {
	return f(ctx, n)
}
