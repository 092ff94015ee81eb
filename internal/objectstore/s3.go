package objectstore

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/example/artifact-api/internal/logging"
)

// S3Config describes an S3 or S3-compatible (minio) bucket.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	PublicBaseURL   string
}

// S3Store uploads objects to an S3 bucket.
type S3Store struct {
	client     *s3.Client
	bucket     string
	publicBase string
	logger     *zap.Logger
}

// NewS3Client builds an S3 client. Static credentials are used when given,
// otherwise the default AWS credential chain.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// NewS3Store wraps client. The public base URL defaults to the endpoint for
// S3-compatible servers and to the virtual-hosted AWS URL otherwise.
func NewS3Store(client *s3.Client, cfg S3Config, logger *zap.Logger) *S3Store {
	base := cfg.PublicBaseURL
	switch {
	case base != "":
	case cfg.Endpoint != "":
		base = cfg.Endpoint
	default:
		base = fmt.Sprintf("https://s3.%s.amazonaws.com", cfg.Region)
	}
	return &S3Store{client: client, bucket: cfg.Bucket, publicBase: base, logger: logger.Named("s3")}
}

// Put implements Store.
func (s *S3Store) Put(ctx context.Context, obj Object) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(obj.Name),
		Body:          bytes.NewReader(obj.Data),
		ContentType:   aws.String(obj.ContentType),
		ContentLength: aws.Int64(int64(len(obj.Data))),
	})
	if err != nil {
		wrapped := logging.NewOperationError("objectstore.s3.put", "", err)
		s.logger.Error("upload failed", zap.Error(wrapped), zap.String("bucket", s.bucket), zap.String("object", obj.Name))
		return "", wrapped
	}
	return publicURL(s.publicBase, s.bucket, obj.Name), nil
}
