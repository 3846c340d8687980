// Package notify delivers scheduling events to the notification collaborator.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/Innovatel-Q/malaikasante-main-backend-sub000/internal/events"
	"github.com/Innovatel-Q/malaikasante-main-backend-sub000/pkg/logging"
)

// Notifier is the notification collaborator: fire-and-forget delivery of one
// event to one user.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, eventKind string, payload json.RawMessage) error
}

// Service forwards outbox envelopes to a Notifier. It implements
// events.DeliveryHandler.
type Service struct {
	notifier Notifier
	logger   *logging.Logger
}

var _ events.DeliveryHandler = (*Service)(nil)

// NewService creates a notification service.
func NewService(notifier Notifier, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}
	return &Service{notifier: notifier, logger: logger}
}

// Handle delivers env. Errors leave the envelope pending for the next poll.
func (s *Service) Handle(ctx context.Context, env events.Envelope) error {
	if env.RecipientID == uuid.Nil {
		s.logger.Warn("notify: dropping event without recipient", "event_id", env.ID, "type", env.Type)
		return nil
	}
	if err := s.notifier.Notify(ctx, env.RecipientID, env.Type, env.Payload); err != nil {
		return fmt.Errorf("notify: deliver %s to %s: %w", env.Type, env.RecipientID, err)
	}
	return nil
}

// LogNotifier writes notifications to the log. It stands in for the real
// collaborator in development.
type LogNotifier struct {
	logger *logging.Logger
}

func NewLogNotifier(logger *logging.Logger) *LogNotifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, userID uuid.UUID, eventKind string, payload json.RawMessage) error {
	n.logger.Info("notification", "user_id", userID, "event", eventKind, "payload_bytes", len(payload))
	return nil
}
