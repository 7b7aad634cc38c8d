package sinks

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/bridgekit/bridgearchiver/pkg/engine"
	"github.com/hashicorp/go-cleanhttp"
	"go.uber.org/zap"
)

// S3Uploader is the part of manager.Uploader the sink needs.
type S3Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Config configures the S3 sink. Only Bucket is required.
type S3Config struct {
	Bucket string
	Prefix string

	Region   string
	Endpoint string
	// ForcePathStyle is needed by most S3-compatible services (MinIO, R2).
	ForcePathStyle bool

	// Static credentials. When empty the default AWS credential chain is used.
	AccessKeyID     string
	SecretAccessKey string

	// ServerSideEncryption is "AES256" or "aws:kms". Empty leaves the bucket default.
	ServerSideEncryption string
	KMSKeyID             string

	// Metadata is attached to every uploaded object.
	Metadata map[string]string
}

// S3Sink uploads sealed artifacts to S3-compatible object storage.
type S3Sink struct {
	cfg      S3Config
	uploader S3Uploader
	logger   *zap.Logger
}

// NewS3Sink loads the AWS configuration and returns a sink uploading with a
// pooled HTTP client.
func NewS3Sink(ctx context.Context, logger *zap.Logger, cfg S3Config) (*S3Sink, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	loadOpts := []func(*config.LoadOptions) error{
		config.WithHTTPClient(cleanhttp.DefaultPooledClient()),
	}
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return NewS3SinkWithUploader(logger, cfg, manager.NewUploader(client)), nil
}

// NewS3SinkWithUploader returns a sink that sends uploads through uploader.
func NewS3SinkWithUploader(logger *zap.Logger, cfg S3Config, uploader S3Uploader) *S3Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &S3Sink{
		cfg:      cfg,
		uploader: uploader,
		logger:   logger,
	}
}

func (s *S3Sink) Name() string {
	if s.cfg.Prefix != "" {
		return fmt.Sprintf("s3(%s/%s)", s.cfg.Bucket, s.cfg.Prefix)
	}
	return fmt.Sprintf("s3(%s)", s.cfg.Bucket)
}

func (s *S3Sink) Kind() string {
	return "s3"
}

// Write uploads data under the sink prefix.
func (s *S3Sink) Write(ctx context.Context, objectPath string, data io.Reader) error {
	key := path.Join(s.cfg.Prefix, objectPath)

	input := &s3.PutObjectInput{
		Bucket:   aws.String(s.cfg.Bucket),
		Key:      aws.String(key),
		Body:     data,
		Metadata: s.cfg.Metadata,
	}
	if contentType := ContentTypeFromPath(objectPath); contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if s.cfg.ServerSideEncryption != "" {
		input.ServerSideEncryption = types.ServerSideEncryption(s.cfg.ServerSideEncryption)
	}
	if s.cfg.KMSKeyID != "" {
		input.SSEKMSKeyId = aws.String(s.cfg.KMSKeyID)
	}

	out, err := s.uploader.Upload(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to upload to s3://%s/%s: %w", s.cfg.Bucket, key, err)
	}

	fields := []zap.Field{zap.String("bucket", s.cfg.Bucket), zap.String("key", key)}
	if out != nil && out.ETag != nil {
		fields = append(fields, zap.String("etag", *out.ETag))
	}
	s.logger.Debug("uploaded object", fields...)

	return nil
}

func (s *S3Sink) Close(ctx context.Context) error {
	return nil
}

var _ engine.Sink = (*S3Sink)(nil)
