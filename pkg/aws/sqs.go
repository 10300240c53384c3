package aws

import (
	"context"
	"fmt"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/zap"
)

// SQSAPI is the subset of the SQS client used by SQSConsumer.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

const (
	defaultVisibilityTimeout = 60 * time.Second
	defaultMaxMessages       = 10
)

// SQSConsumer provides methods for consuming messages from SQS queues
type SQSConsumer struct {
	client      SQSAPI
	queueURL    string
	visibility  time.Duration
	maxMessages int32
	logger      *zap.Logger
	now         func() time.Time
}

// NewSQSConsumer creates a new SQS consumer for the given queue URL
func NewSQSConsumer(cfg sdkaws.Config, queueURL string, logger *zap.Logger) *SQSConsumer {
	return NewSQSConsumerWithClient(sqs.NewFromConfig(cfg), queueURL, logger)
}

func NewSQSConsumerWithClient(client SQSAPI, queueURL string, logger *zap.Logger) *SQSConsumer {
	return &SQSConsumer{
		client:      client,
		queueURL:    queueURL,
		visibility:  defaultVisibilityTimeout,
		maxMessages: defaultMaxMessages,
		logger:      logger,
		now:         time.Now,
	}
}

// WithVisibility sets the visibility timeout requested on receive and the
// batch size. Handlers of one batch share a deadline inside that window.
func (c *SQSConsumer) WithVisibility(visibility time.Duration, maxMessages int32) *SQSConsumer {
	if visibility >= time.Second {
		c.visibility = visibility
	}
	if maxMessages > 0 && maxMessages <= defaultMaxMessages {
		c.maxMessages = maxMessages
	}
	return c
}

// handlerWindow is how long after receive handlers may still run. The margin
// leaves time to delete the message before it becomes visible again.
func (c *SQSConsumer) handlerWindow() time.Duration {
	return c.visibility - c.visibility/6
}

// MessageHandler processes one message body. Returning an error leaves the
// message on the queue; it becomes visible again after the visibility timeout.
type MessageHandler func(ctx context.Context, body string) error

// StartPolling polls SQS until ctx is cancelled.
func (c *SQSConsumer) StartPolling(ctx context.Context, handler MessageHandler) error {
	c.logger.Info("Starting SQS polling", zap.String("queue_url", c.queueURL))

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("SQS polling stopped", zap.String("queue_url", c.queueURL))
			return ctx.Err()
		default:
			if err := c.PollOnce(ctx, handler); err != nil && ctx.Err() == nil {
				c.logger.Warn("Error polling SQS", zap.Error(err))
			}
		}
	}
}

// PollOnce receives one batch and dispatches every message to handler. Each
// handler context ends before the batch's visibility timeout; a message whose
// turn comes after that is left for redelivery without being handled.
func (c *SQSConsumer) PollOnce(ctx context.Context, handler MessageHandler) error {
	result, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            &c.queueURL,
		MaxNumberOfMessages: c.maxMessages,
		WaitTimeSeconds:     20,
		VisibilityTimeout:   int32(c.visibility / time.Second),
	})
	if err != nil {
		return fmt.Errorf("failed to receive messages: %w", err)
	}
	deadline := c.now().Add(c.handlerWindow())

	for _, msg := range result.Messages {
		if msg.Body == nil {
			continue
		}
		messageID := sdkaws.ToString(msg.MessageId)

		if !c.now().Before(deadline) {
			c.logger.Warn("Visibility window spent, leaving SQS message for redelivery",
				zap.String("message_id", messageID),
			)
			continue
		}

		handlerCtx, cancel := context.WithDeadline(ctx, deadline)
		err := handler(handlerCtx, *msg.Body)
		cancel()
		if err != nil {
			c.logger.Warn("Failed to process SQS message",
				zap.String("message_id", messageID),
				zap.Error(err),
			)
			continue
		}

		if _, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
			QueueUrl:      &c.queueURL,
			ReceiptHandle: msg.ReceiptHandle,
		}); err != nil {
			c.logger.Error("Failed to delete SQS message",
				zap.String("message_id", messageID),
				zap.Error(err),
			)
		}
	}

	return nil
}
