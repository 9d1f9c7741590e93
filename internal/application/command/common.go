package command

import (
	"github.com/google/uuid"

	"github.com/sqlearn/progress-hub/internal/domain/shared"
	"github.com/sqlearn/progress-hub/pkg/logger"
)

// IDGenerator generates unique identifiers for ledger entries.
type IDGenerator interface {
	GenerateID() string
}

// UUIDGenerator generates random UUIDs.
type UUIDGenerator struct{}

// GenerateID implements IDGenerator.
func (UUIDGenerator) GenerateID() string {
	return uuid.NewString()
}

// publishAll publishes events, logging failures. Events are notifications
// about committed state, so a publish failure never fails the command.
func publishAll(publisher shared.EventPublisher, log *logger.Logger, events ...shared.Event) {
	if publisher == nil {
		return
	}
	for _, e := range events {
		if err := publisher.Publish(e); err != nil {
			log.Warn("failed to publish event",
				logger.String("event_type", string(e.EventType())),
				logger.UserID(e.AggregateID()),
				logger.Err(err),
			)
		}
	}
}
