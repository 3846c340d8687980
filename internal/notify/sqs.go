package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"
)

// SQSAPI is the subset of the SQS client used for publishing.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Message is the queue body consumed by the notification collaborator.
type Message struct {
	UserID    uuid.UUID       `json:"user_id"`
	EventKind string          `json:"event_kind"`
	Payload   json.RawMessage `json:"payload"`
}

// SQSNotifier publishes notifications to an SQS queue.
type SQSNotifier struct {
	client   SQSAPI
	queueURL string
}

func NewSQSNotifier(client SQSAPI, queueURL string) *SQSNotifier {
	if client == nil {
		panic("notify: SQS client cannot be nil")
	}
	if queueURL == "" {
		panic("notify: SQS queueURL cannot be empty")
	}
	return &SQSNotifier{client: client, queueURL: queueURL}
}

func (n *SQSNotifier) Notify(ctx context.Context, userID uuid.UUID, eventKind string, payload json.RawMessage) error {
	body, err := json.Marshal(Message{UserID: userID, EventKind: eventKind, Payload: payload})
	if err != nil {
		return fmt.Errorf("notify: marshal message: %w", err)
	}
	_, err = n.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(n.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"event_kind": {DataType: aws.String("String"), StringValue: aws.String(eventKind)},
		},
	})
	if err != nil {
		return fmt.Errorf("notify: failed to send SQS message: %w", err)
	}
	return nil
}
