package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"dapur-be/internal/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"
)

// SQSAPI is the subset of the SQS client the publisher needs.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// QueuePublisher hands messages to an SQS queue drained by a separate SMS
// worker.
type QueuePublisher struct {
	SQS      SQSAPI
	QueueURL string
}

func NewQueuePublisher(client SQSAPI, queueURL string) *QueuePublisher {
	return &QueuePublisher{SQS: client, QueueURL: queueURL}
}

type queuedSMS struct {
	Phone string `json:"phone"`
	Kind  string `json:"kind"`
	Body  string `json:"body"`
}

func (p *QueuePublisher) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(queuedSMS{
		Phone: msg.Phone,
		Kind:  msg.Kind.String(),
		Body:  msg.Body,
	})
	if err != nil {
		return err
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.QueueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"kind": {
				DataType:    aws.String("String"),
				StringValue: aws.String(msg.Kind.String()),
			},
		},
	}

	if _, err := p.SQS.SendMessage(ctx, input); err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			logger.For(ctx, "notify", "QueuePublisher.Send").Warn("sqs rejected message",
				zap.String("code", apiErr.ErrorCode()),
				zap.String("kind", msg.Kind.String()),
			)
		}
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}
