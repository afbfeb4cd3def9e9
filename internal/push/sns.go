package push

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"go.uber.org/zap"
)

// Publisher fans class reminder pushes out to an SNS topic. Mobile and
// browser push workers subscribe to the topic downstream.
type Publisher struct {
	client   *sns.Client
	topicARN string
	logger   *zap.Logger
}

// Message is the payload published for each push reminder.
type Message struct {
	UserID     string `json:"user_id"`
	ReminderID string `json:"reminder_id"`
	Title      string `json:"title"`
	Body       string `json:"body"`
	Link       string `json:"link,omitempty"`
}

// NewPublisher creates an SNS publisher for the given topic.
func NewPublisher(ctx context.Context, topicARN, region string, logger *zap.Logger) (*Publisher, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Publisher{
		client:   sns.NewFromConfig(cfg),
		topicARN: topicARN,
		logger:   logger,
	}, nil
}

// Publish sends one push message to the topic. The user_id attribute lets
// subscribers filter without unmarshalling the payload.
func (p *Publisher) Publish(ctx context.Context, msg Message) (string, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	input := &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(payload)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"user_id": {
				DataType:    aws.String("String"),
				StringValue: aws.String(msg.UserID),
			},
		},
	}

	result, err := p.client.Publish(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to publish to SNS: %w", err)
	}

	p.logger.Debug("push reminder published",
		zap.String("user_id", msg.UserID),
		zap.String("message_id", *result.MessageId),
	)

	return *result.MessageId, nil
}
