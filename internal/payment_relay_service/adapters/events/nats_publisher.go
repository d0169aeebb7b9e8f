package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/muhammadghassan/tcs-stripe-integration/internal/payment_relay_service/domain"
)

// Publisher is satisfied by *messagebroker.NatsClient.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

type NatsEventPublisher struct {
	broker Publisher
	logger *slog.Logger
}

func NewNatsEventPublisher(broker Publisher, logger *slog.Logger) *NatsEventPublisher {
	return &NatsEventPublisher{broker: broker, logger: logger.With("component", "nats_event_publisher")}
}

func (p *NatsEventPublisher) PublishCreditsPurchased(ctx context.Context, event domain.CreditsPurchasedEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshalling credits purchased event: %w", err)
	}
	if err := p.broker.Publish(ctx, domain.SubjectCreditsPurchased, data); err != nil {
		return err
	}
	p.logger.DebugContext(ctx, "Published credits purchased event", "transaction_id", event.TransactionID, "subject", domain.SubjectCreditsPurchased)
	return nil
}

// NoopEventPublisher is used when no broker is configured.
type NoopEventPublisher struct{}

func (NoopEventPublisher) PublishCreditsPurchased(context.Context, domain.CreditsPurchasedEvent) error {
	return nil
}
