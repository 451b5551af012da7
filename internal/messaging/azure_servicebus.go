package messaging

import (
	"context"
	"time"

	"example.com/granary/config"
	"example.com/granary/internal/tracing"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// MessageHandler processes one received Service Bus message
type MessageHandler func(ctx context.Context, message *azservicebus.ReceivedMessage, txn *newrelic.Transaction) error

// ReadingConsumer receives temperature reading messages from an Azure
// Service Bus queue and hands them to a handler.
type ReadingConsumer struct {
	client    *azservicebus.Client
	receiver  *azservicebus.Receiver
	queueName string
	tracer    tracing.Tracer
}

// NewReadingConsumer creates a new reading consumer for the configured queue
func NewReadingConsumer(cfg config.AzureConfig, tracer tracing.Tracer) (*ReadingConsumer, error) {
	if cfg.QueueConnStr == "" {
		return nil, errors.New("Azure Service Bus connection string is empty")
	}

	client, err := azservicebus.NewClientFromConnectionString(cfg.QueueConnStr, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus client")
	}

	receiver, err := client.NewReceiverForQueue(cfg.QueueName, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus receiver")
	}

	return &ReadingConsumer{
		client:    client,
		receiver:  receiver,
		queueName: cfg.QueueName,
		tracer:    tracer,
	}, nil
}

// ProcessMessages receives messages until the context is cancelled.
// Handled messages are completed, failed ones are abandoned so the
// broker redelivers them.
func (c *ReadingConsumer) ProcessMessages(ctx context.Context, handler MessageHandler) error {
	defer c.close()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		messages, err := c.receiver.ReceiveMessages(ctx, 10, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error().Err(err).Str("queue", c.queueName).Msg("Failed to receive messages, retrying")
			time.Sleep(5 * time.Second)
			continue
		}

		for _, message := range messages {
			txn := c.tracer.StartTransaction("process-reading-message")

			if err := handler(ctx, message, txn); err != nil {
				c.tracer.RecordError(txn, err)
				c.tracer.EndTransaction(txn)

				log.Error().
					Err(err).
					Str("message_id", message.MessageID).
					Msg("Failed to process reading message, abandoning")

				if abandonErr := c.receiver.AbandonMessage(ctx, message, nil); abandonErr != nil {
					log.Error().Err(abandonErr).Str("message_id", message.MessageID).Msg("Failed to abandon message")
				}
				continue
			}

			if err := c.receiver.CompleteMessage(ctx, message, nil); err != nil {
				log.Error().Err(err).Str("message_id", message.MessageID).Msg("Failed to complete message")
			}

			c.tracer.EndTransaction(txn)
		}
	}
}

func (c *ReadingConsumer) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if c.receiver != nil {
		if err := c.receiver.Close(ctx); err != nil {
			log.Error().Err(err).Msg("Failed to close Service Bus receiver")
		}
	}

	if c.client != nil {
		if err := c.client.Close(ctx); err != nil {
			log.Error().Err(err).Msg("Failed to close Service Bus client")
		}
	}
}
