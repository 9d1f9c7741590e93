// Package service contains infrastructure adapters that implement
// application-level ports without an external system behind them.
package service

import (
	"context"
	"sync"

	"github.com/sqlearn/progress-hub/internal/domain/notification"
	"github.com/sqlearn/progress-hub/pkg/logger"
)

// LogSender implements notification.Sender by writing each notification
// to the log. It is the default channel until a push provider is wired.
type LogSender struct {
	log *logger.Logger
}

// NewLogSender creates a new LogSender.
func NewLogSender(log *logger.Logger) *LogSender {
	if log == nil {
		log = logger.Nop()
	}
	return &LogSender{log: log.With(logger.Component("notification_sender"))}
}

// Send logs the notification.
func (s *LogSender) Send(ctx context.Context, n *notification.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.log.Info("notification delivered",
		logger.String("id", n.ID),
		logger.UserID(n.RecipientID),
		logger.String("type", string(n.Type)),
		logger.Int("priority", int(n.Priority)),
		logger.String("title", n.Title),
		logger.String("message", n.Message),
	)
	return nil
}

// RecordingSender keeps every notification in memory. The CLI uses it to
// print what a command would have sent.
type RecordingSender struct {
	mu   sync.Mutex
	sent []*notification.Notification
}

// Send records the notification.
func (s *RecordingSender) Send(_ context.Context, n *notification.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n)
	return nil
}

// Sent returns a copy of the recorded notifications in send order.
func (s *RecordingSender) Sent() []*notification.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*notification.Notification, len(s.sent))
	copy(out, s.sent)
	return out
}

// FanoutSender delivers to every sender in order and returns the first error.
type FanoutSender []notification.Sender

// Send implements notification.Sender.
func (f FanoutSender) Send(ctx context.Context, n *notification.Notification) error {
	var first error
	for _, s := range f {
		if err := s.Send(ctx, n); err != nil && first == nil {
			first = err
		}
	}
	return first
}
