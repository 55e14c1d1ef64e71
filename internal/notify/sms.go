package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/vendora-app/vendora/pkg/logging"
)

// SMSSender sends SMS messages to customers.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// smsEnvelope is the message format the downstream SMS gateway consumes.
type smsEnvelope struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

// sqsAPI is the subset of the SQS client the sender uses.
type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSSMSSender hands SMS messages to the gateway queue. The gateway worker
// owns carrier delivery and retry.
type SQSSMSSender struct {
	client   sqsAPI
	queueURL string
	logger   *logging.Logger
}

// NewSQSSMSSender creates an SMS sender backed by AWS/LocalStack SQS.
func NewSQSSMSSender(client *sqs.Client, queueURL string, logger *logging.Logger) *SQSSMSSender {
	if client == nil || queueURL == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SQSSMSSender{client: client, queueURL: queueURL, logger: logger}
}

// SendSMS enqueues one SMS for the gateway.
func (s *SQSSMSSender) SendSMS(ctx context.Context, to, body string) error {
	payload, err := json.Marshal(smsEnvelope{To: to, Body: body})
	if err != nil {
		return fmt.Errorf("notify: marshal SMS envelope: %w", err)
	}
	_, err = s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(payload)),
	})
	if err != nil {
		s.logger.Error("SMS enqueue failed", "error", err, "to", to)
		return fmt.Errorf("notify: enqueue SMS: %w", err)
	}
	s.logger.Debug("SMS enqueued", "to", to)
	return nil
}

// StubSMSSender is a no-op sender for testing.
type StubSMSSender struct {
	logger *logging.Logger
}

// NewStubSMSSender creates a stub SMS sender.
func NewStubSMSSender(logger *logging.Logger) *StubSMSSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubSMSSender{logger: logger}
}

// SendSMS logs but doesn't send.
func (s *StubSMSSender) SendSMS(ctx context.Context, to, body string) error {
	s.logger.Info("stub SMS sender: would send", "to", to, "body_preview", truncate(body, 50))
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

var _ SMSSender = (*SQSSMSSender)(nil)
var _ SMSSender = (*StubSMSSender)(nil)
