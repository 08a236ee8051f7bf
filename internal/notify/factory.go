package notify

import (
	"context"
	"fmt"
	"os"

	"dapur-be/internal/config"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

const (
	DriverLog = "log"
	DriverSMS = "sms"
	DriverSQS = "sqs"
)

// NewFromConfig builds the Notifier selected by NOTIFIER_DRIVER.
func NewFromConfig(ctx context.Context, cfg *config.Config) (Notifier, error) {
	switch cfg.NotifierDriver {
	case "", DriverLog:
		return LogNotifier{}, nil

	case DriverSMS:
		if cfg.SMSGatewayURL == "" {
			return nil, fmt.Errorf("%w: SMS_GATEWAY_URL", ErrMissingConfig)
		}
		return NewSMSGateway(cfg.SMSGatewayURL, cfg.SMSGatewayAPIKey), nil

	case DriverSQS:
		if cfg.SMSQueueURL == "" {
			return nil, fmt.Errorf("%w: SMS_QUEUE_URL", ErrMissingConfig)
		}

		region := os.Getenv("AWS_REGION")
		if region == "" {
			region = "us-east-1"
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		return NewQueuePublisher(sqs.NewFromConfig(awsCfg), cfg.SMSQueueURL), nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.NotifierDriver)
}
