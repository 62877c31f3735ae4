package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/identifier/config"
)

const contentTypeJSON = "application/json"

// Publisher sends identifier events
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// sender is the part of *azservicebus.Sender the publisher uses
type sender interface {
	SendMessage(ctx context.Context, message *azservicebus.Message, options *azservicebus.SendMessageOptions) error
	Close(ctx context.Context) error
}

// ServiceBusPublisher publishes events to an Azure Service Bus queue
type ServiceBusPublisher struct {
	client *azservicebus.Client
	sender sender
	source string
}

// NewPublisher returns a Service Bus publisher, or a no-op publisher when no
// connection string is configured
func NewPublisher(cfg config.AzureConfig, source string) (Publisher, error) {
	if cfg.QueueConnStr == "" {
		log.Warn().Msg("Azure Service Bus connection string not provided, events will not be published")
		return NoopPublisher{}, nil
	}

	client, err := azservicebus.NewClientFromConnectionString(cfg.QueueConnStr, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus client")
	}

	s, err := client.NewSender(cfg.EventsQueue, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus sender")
	}

	return &ServiceBusPublisher{client: client, sender: s, source: source}, nil
}

// Publish sends event as a JSON message
func (p *ServiceBusPublisher) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "failed to marshal event")
	}

	messageID := event.ID.String()
	contentType := contentTypeJSON
	subject := event.EventType
	msg := &azservicebus.Message{
		Body:        data,
		MessageID:   &messageID,
		ContentType: &contentType,
		Subject:     &subject,
		ApplicationProperties: map[string]interface{}{
			"source":    p.source,
			"eventType": event.EventType,
			"time":      event.OccurredAt.Format(time.RFC3339),
		},
	}

	if err := p.sender.SendMessage(ctx, msg, nil); err != nil {
		return errors.Wrapf(err, "failed to publish %s", event.EventType)
	}
	return nil
}

// Close closes the sender and the client
func (p *ServiceBusPublisher) Close() error {
	if p.sender != nil {
		if err := p.sender.Close(context.Background()); err != nil {
			return err
		}
	}
	if p.client != nil {
		return p.client.Close(context.Background())
	}
	return nil
}

// NoopPublisher drops every event
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, event Event) error {
	log.Debug().Str("eventType", event.EventType).Msg("event publishing disabled")
	return nil
}

func (NoopPublisher) Close() error { return nil }
