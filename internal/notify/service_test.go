package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Innovatel-Q/malaikasante-main-backend-sub000/internal/events"
)

type mockSQS struct {
	inputs  []*sqs.SendMessageInput
	callErr error
}

func (m *mockSQS) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	if m.callErr != nil {
		return nil, m.callErr
	}
	m.inputs = append(m.inputs, params)
	return &sqs.SendMessageOutput{MessageId: aws.String("msg-1")}, nil
}

func envelope(t *testing.T, recipient uuid.UUID) events.Envelope {
	t.Helper()
	env, err := events.NewEnvelope(uuid.New(), recipient, events.BookingEventV1{
		Kind:   events.TypeBookingConfirmed,
		Status: "confirmed",
	}, time.Now())
	require.NoError(t, err)
	return env
}

func TestServicePublishesToSQS(t *testing.T) {
	client := &mockSQS{}
	svc := NewService(NewSQSNotifier(client, "https://sqs.local/queue/notifications"), nil)
	recipient := uuid.New()
	env := envelope(t, recipient)

	require.NoError(t, svc.Handle(context.Background(), env))
	require.Len(t, client.inputs, 1)
	in := client.inputs[0]
	assert.Equal(t, "https://sqs.local/queue/notifications", aws.ToString(in.QueueUrl))
	assert.Equal(t, events.TypeBookingConfirmed, aws.ToString(in.MessageAttributes["event_kind"].StringValue))

	var msg Message
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(in.MessageBody)), &msg))
	assert.Equal(t, recipient, msg.UserID)
	assert.Equal(t, events.TypeBookingConfirmed, msg.EventKind)
	assert.JSONEq(t, string(env.Payload), string(msg.Payload))
}

func TestServiceSurfacesTransportErrors(t *testing.T) {
	client := &mockSQS{callErr: errors.New("throttled")}
	svc := NewService(NewSQSNotifier(client, "https://sqs.local/queue/notifications"), nil)

	err := svc.Handle(context.Background(), envelope(t, uuid.New()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}

func TestServiceDefaultsToLogNotifier(t *testing.T) {
	svc := NewService(nil, nil)
	assert.NoError(t, svc.Handle(context.Background(), envelope(t, uuid.New())))
}

func TestNewSQSNotifierValidates(t *testing.T) {
	assert.Panics(t, func() { NewSQSNotifier(nil, "q") })
	assert.Panics(t, func() { NewSQSNotifier(&mockSQS{}, "") })
}
