// Package s3 archives pruned revisions to Amazon S3 or an S3-compatible
// service (MinIO, Localstack).
package s3

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/waverider/internal/logger"
	"github.com/marmos91/waverider/pkg/archive"
)

// API is the subset of the S3 client the archiver uses.
type API interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver writes each revision as one object.
//
// Object Layout:
//   - Key: <prefix><host>/<path>/<content id>, see archive.Revision.ObjectKey
//   - Body: the stored (gzip) bytes, unmodified
//   - Content-Type / Content-Encoding: from the revision meta
//   - User metadata: every other meta field
//
// Re-archiving a revision overwrites the same object, which makes Put
// idempotent.
//
// Thread Safety:
// Safe for concurrent use; the S3 client is.
type S3Archiver struct {
	client    API
	bucket    string
	keyPrefix string
}

// S3ArchiverConfig contains configuration for the S3 archiver.
type S3ArchiverConfig struct {
	// Client is the configured S3 client
	Client API

	// Bucket is the S3 bucket name
	Bucket string

	// KeyPrefix is an optional prefix for all object keys
	// Example: "archive/" results in keys like "archive/example.com/index.html/12"
	KeyPrefix string
}

// NewS3Archiver creates an archiver and verifies bucket access. The bucket
// must already exist.
//
// Parameters:
//   - ctx: Context for cancellation and timeouts
//   - cfg: Client and bucket configuration
//
// Returns:
//   - *S3Archiver: Ready to use
//   - error: Missing configuration, bucket access failure or cancelled context
func NewS3Archiver(ctx context.Context, cfg S3ArchiverConfig) (*S3Archiver, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	_, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	return &S3Archiver{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
	}, nil
}

func (a *S3Archiver) objectKey(rev archive.Revision) string {
	return a.keyPrefix + rev.ObjectKey()
}

// Put implements archive.Archiver.
func (a *S3Archiver) Put(ctx context.Context, rev archive.Revision) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	in := &s3.PutObjectInput{
		Bucket:   aws.String(a.bucket),
		Key:      aws.String(a.objectKey(rev)),
		Body:     bytes.NewReader(rev.Data),
		Metadata: make(map[string]string, len(rev.Meta)),
	}
	for field, value := range rev.Meta {
		switch field {
		case "type":
			in.ContentType = aws.String(value)
		case "Content-Encoding":
			in.ContentEncoding = aws.String(value)
		default:
			in.Metadata[field] = value
		}
	}

	if _, err := a.client.PutObject(ctx, in); err != nil {
		return fmt.Errorf("failed to archive %s to S3: %w", *in.Key, err)
	}

	logger.Debug("Archived revision %s of %s to s3://%s/%s", rev.ID, rev.Key, a.bucket, *in.Key)
	return nil
}

// Close implements archive.Archiver. The S3 client holds no resources.
func (a *S3Archiver) Close() error {
	return nil
}

var _ archive.Archiver = (*S3Archiver)(nil)

// NewS3ClientFromConfig builds an S3 client.
//
// Parameters:
//   - endpoint: Custom endpoint for S3-compatible services; empty for AWS
//   - region: AWS region
//   - accessKeyID, secretAccessKey: Static credentials; empty uses the
//     default credential chain
//   - forcePathStyle: Path-style addressing (implied by a custom endpoint)
//   - maxRetries: Attempts for transient errors (default 10)
func NewS3ClientFromConfig(
	ctx context.Context,
	endpoint, region, accessKeyID, secretAccessKey string,
	forcePathStyle bool,
	maxRetries int,
) (*s3.Client, error) {
	configOptions := []func(*awsConfig.LoadOptions) error{
		awsConfig.WithRegion(region),
	}

	if accessKeyID != "" && secretAccessKey != "" {
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		))
	}

	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	cfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
		if forcePathStyle {
			o.UsePathStyle = true
		}
	}), nil
}
