package notify

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/vendora-app/vendora/pkg/logging"
)

type captureSQS struct {
	inputs []*sqs.SendMessageInput
}

func (c *captureSQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	c.inputs = append(c.inputs, params)
	return &sqs.SendMessageOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSQSSMSSenderEnqueuesEnvelope(t *testing.T) {
	client := &captureSQS{}
	sender := &SQSSMSSender{
		client:   client,
		queueURL: "http://localhost:4566/000000000000/sms-gateway",
		logger:   logging.Default(),
	}

	if err := sender.SendSMS(context.Background(), "+15551230000", "Vendora: booking confirmed."); err != nil {
		t.Fatalf("SendSMS returned error: %v", err)
	}

	if len(client.inputs) != 1 {
		t.Fatalf("expected 1 enqueued message, got %d", len(client.inputs))
	}
	input := client.inputs[0]
	if aws.ToString(input.QueueUrl) != "http://localhost:4566/000000000000/sms-gateway" {
		t.Errorf("unexpected queue url: %s", aws.ToString(input.QueueUrl))
	}

	var envelope smsEnvelope
	if err := json.Unmarshal([]byte(aws.ToString(input.MessageBody)), &envelope); err != nil {
		t.Fatalf("body is not a valid envelope: %v", err)
	}
	if envelope.To != "+15551230000" || envelope.Body != "Vendora: booking confirmed." {
		t.Errorf("unexpected envelope: %+v", envelope)
	}
}

func TestNewSQSSMSSenderRequiresConfig(t *testing.T) {
	if sender := NewSQSSMSSender(nil, "http://queue", nil); sender != nil {
		t.Error("expected nil sender without a client")
	}
	if sender := NewSQSSMSSender(&sqs.Client{}, "", nil); sender != nil {
		t.Error("expected nil sender without a queue url")
	}
}
