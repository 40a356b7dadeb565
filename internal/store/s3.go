package store

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Options locates an S3-compatible bucket.
type S3Options struct {
	Endpoint  string // empty for AWS itself
	Region    string
	AccessKey string
	SecretKey string
}

// NewS3Client builds an S3 client. Static credentials are used when both keys are
// set, otherwise the default AWS credential chain applies. A custom endpoint
// switches to path-style addressing.
func NewS3Client(ctx context.Context, opts S3Options) (*s3.Client, error) {
	loaders := []func(*config.LoadOptions) error{
		config.WithRegion(opts.Region),
	}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, fmt.Errorf("error creating aws config: %w", err)
	}

	return s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}
