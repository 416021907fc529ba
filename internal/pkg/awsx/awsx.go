// Package awsx constructs the shared AWS service clients from service
// configuration. Credentials fall back to the default chain (IAM role on
// ECS) when no static keys are configured.
package awsx

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/readysetcloud/newsletter-service-sub011/internal/config"
)

// Clients bundles the AWS service clients the service uses.
type Clients struct {
	DynamoDB    *dynamodb.Client
	SES         *sesv2.Client
	EventBridge *eventbridge.Client
	S3          *s3.Client
}

// New builds all service clients from one resolved AWS config.
func New(ctx context.Context, cfg config.AWSConfig) (*Clients, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	if profile := cfg.GetProfile(); profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	return &Clients{
		DynamoDB:    dynamodb.NewFromConfig(awsCfg),
		SES:         sesv2.NewFromConfig(awsCfg),
		EventBridge: eventbridge.NewFromConfig(awsCfg),
		S3:          s3.NewFromConfig(awsCfg),
	}, nil
}
