package sns

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/verify-emails/internal/config"
	"github.com/verify-emails/internal/domain"
)

// publishAPI is the slice of *sns.Client the publisher needs.
type publishAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Publisher pushes welcome jobs onto an SNS topic for an out-of-process mail worker.
type Publisher struct {
	client   publishAPI
	topicARN string
}

func NewPublisher(cfg *config.Config) (*Publisher, error) {
	if cfg.WelcomeTopicARN == "" {
		return nil, fmt.Errorf("SNS_WELCOME_TOPIC_ARN not set: %w", domain.ErrServerMisconfigured)
	}
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWSRegion),
	}
	if cfg.AWSAccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	var clientOpts []func(*sns.Options)
	if cfg.AWSEndpointURL != "" {
		clientOpts = append(clientOpts, func(o *sns.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		})
	}
	return &Publisher{client: sns.NewFromConfig(awsCfg, clientOpts...), topicARN: cfg.WelcomeTopicARN}, nil
}

// PublishWelcome publishes job as a JSON message. Returns the SNS message id.
func (p *Publisher) PublishWelcome(ctx context.Context, job domain.WelcomeJob) (string, error) {
	body, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("marshal welcome job: %w", err)
	}
	out, err := p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
		Subject:  aws.String("welcome"),
	})
	if err != nil {
		return "", fmt.Errorf("sns publish: %w: %w", domain.ErrProviderCallFailed, err)
	}
	return aws.ToString(out.MessageId), nil
}
