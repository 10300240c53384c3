package aws

import (
	"context"
	"fmt"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SNS subjects are capped at 100 characters.
const maxSubjectLen = 100

// Alert is one operator notification. EventType is sent as the event_type
// message attribute so subscriptions can filter on it.
type Alert struct {
	Subject   string
	EventType string
	Body      []byte
}

// AlertPublisher is the part of SNSClient the settlement pipeline depends on.
type AlertPublisher interface {
	PublishAlert(ctx context.Context, topicArn string, alert Alert) error
}

type SNSClient struct {
	client *sns.Client
}

func NewSNSClient(cfg sdkaws.Config) *SNSClient {
	return &SNSClient{client: sns.NewFromConfig(cfg)}
}

// PublishAlert sends the alert body to topicArn.
func (s *SNSClient) PublishAlert(ctx context.Context, topicArn string, alert Alert) error {
	if topicArn == "" {
		return fmt.Errorf("empty topicArn")
	}
	input := &sns.PublishInput{
		TopicArn: sdkaws.String(topicArn),
		Message:  sdkaws.String(string(alert.Body)),
	}
	if alert.Subject != "" {
		subject := alert.Subject
		if len(subject) > maxSubjectLen {
			subject = subject[:maxSubjectLen]
		}
		input.Subject = sdkaws.String(subject)
	}
	if alert.EventType != "" {
		input.MessageAttributes = map[string]types.MessageAttributeValue{
			"event_type": {
				DataType:    sdkaws.String("String"),
				StringValue: sdkaws.String(alert.EventType),
			},
		}
	}

	if _, err := s.client.Publish(ctx, input); err != nil {
		return fmt.Errorf("publish %s alert to %s: %w", alert.EventType, topicArn, err)
	}
	return nil
}
