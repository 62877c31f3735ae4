package messaging

import (
	"context"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/identifier/config"
	"example.com/backstage/services/identifier/internal/metrics"
)

// receiver is the part of *azservicebus.Receiver the consumer uses
type receiver interface {
	ReceiveMessages(ctx context.Context, maxMessages int, options *azservicebus.ReceiveMessagesOptions) ([]*azservicebus.ReceivedMessage, error)
	CompleteMessage(ctx context.Context, message *azservicebus.ReceivedMessage, options *azservicebus.CompleteMessageOptions) error
	AbandonMessage(ctx context.Context, message *azservicebus.ReceivedMessage, options *azservicebus.AbandonMessageOptions) error
	DeadLetterMessage(ctx context.Context, message *azservicebus.ReceivedMessage, options *azservicebus.DeadLetterOptions) error
	Close(ctx context.Context) error
}

// Consumer receives identifier requests from a Service Bus queue
type Consumer struct {
	client    *azservicebus.Client
	receiver  receiver
	queueName string
	metrics   *metrics.Metrics
}

// NewConsumer connects to the request queue
func NewConsumer(cfg config.AzureConfig, collector *metrics.Metrics) (*Consumer, error) {
	if cfg.QueueConnStr == "" {
		return nil, errors.New("Azure Service Bus connection string is empty")
	}

	client, err := azservicebus.NewClientFromConnectionString(cfg.QueueConnStr, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus client")
	}

	r, err := client.NewReceiverForQueue(cfg.RequestQueue, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus receiver")
	}

	return &Consumer{client: client, receiver: r, queueName: cfg.RequestQueue, metrics: collector}, nil
}

// Run receives and processes messages until ctx is cancelled
func (c *Consumer) Run(ctx context.Context, processor MessageProcessor) error {
	log.Info().Str("queue", c.queueName).Msg("Starting request consumer")

	for {
		messages, err := c.receiver.ReceiveMessages(ctx, 10, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error().Err(err).Str("queue", c.queueName).Msg("Error receiving messages")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(2 * time.Second):
			}
			continue
		}

		for _, message := range messages {
			c.handle(ctx, processor, message)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, processor MessageProcessor, message *azservicebus.ReceivedMessage) {
	// Settlement must happen even if ctx is cancelled mid-message.
	settleCtx := context.WithoutCancel(ctx)

	err := processor.ProcessMessage(ctx, message)
	switch {
	case err == nil:
		c.count(metrics.CounterMessagesProcessed)
		if err := c.receiver.CompleteMessage(settleCtx, message, nil); err != nil {
			log.Error().Err(err).Str("message_id", message.MessageID).Msg("(CompleteMessage) failed")
		}

	case IsPermanent(err):
		log.Error().Err(err).Str("message_id", message.MessageID).Msg("Dead-lettering message")
		c.count(metrics.CounterMessagesDeadLetter)
		reason := "processing failed"
		var pe *PermanentError
		if errors.As(err, &pe) {
			reason = pe.Reason
		}
		description := err.Error()
		if err := c.receiver.DeadLetterMessage(settleCtx, message, &azservicebus.DeadLetterOptions{
			Reason:           &reason,
			ErrorDescription: &description,
		}); err != nil {
			log.Error().Err(err).Str("message_id", message.MessageID).Msg("(DeadLetterMessage) failed")
		}

	default:
		log.Error().Err(err).Str("message_id", message.MessageID).Msg("Error processing message, returning to queue")
		if err := c.receiver.AbandonMessage(settleCtx, message, nil); err != nil {
			log.Error().Err(err).Str("message_id", message.MessageID).Msg("(AbandonMessage) failed")
		}
	}
}

func (c *Consumer) count(name string) {
	if c.metrics != nil {
		c.metrics.IncrementCounter(name)
	}
}

// Close closes the receiver and the client
func (c *Consumer) Close() error {
	if c.receiver != nil {
		if err := c.receiver.Close(context.Background()); err != nil {
			return err
		}
	}
	if c.client != nil {
		return c.client.Close(context.Background())
	}
	return nil
}
