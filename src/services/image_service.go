package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/username/tradejournal/backend/src/config"
	"github.com/username/tradejournal/backend/src/logger"
)

// s3ImageStore keeps trade screenshots in an S3-compatible bucket and hands
// out presigned GET URLs so the API never proxies image bytes.
type s3ImageStore struct {
	client        *s3.Client
	presignClient *s3.PresignClient
	bucket        string
	urlTTL        time.Duration
}

func NewS3ImageStore(ctx context.Context, cfg *config.AppConfig) (ImageStore, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3Region),
	}
	if cfg.S3AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config for image store: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		// Path-style addressing for MinIO and other self-hosted stores.
		o.UsePathStyle = cfg.S3UsePathStyle
	})

	logger.L.Info("Image store initialized", "bucket", cfg.S3Bucket, "endpoint", cfg.S3Endpoint, "urlTTL", cfg.SignedURLTTL.String())
	return &s3ImageStore{
		client:        client,
		presignClient: s3.NewPresignClient(client),
		bucket:        cfg.S3Bucket,
		urlTTL:        cfg.SignedURLTTL,
	}, nil
}

func (s *s3ImageStore) Upload(ctx context.Context, key, contentType string, body io.Reader) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload image %s: %w", key, err)
	}
	logger.L.Debug("Image uploaded", "key", key, "contentType", contentType)
	return nil
}

func (s *s3ImageStore) PresignGet(ctx context.Context, key string) (string, error) {
	req, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.urlTTL))
	if err != nil {
		return "", fmt.Errorf("failed to presign image URL for %s: %w", key, err)
	}
	return req.URL, nil
}

func (s *s3ImageStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete image %s: %w", key, err)
	}
	logger.L.Debug("Image deleted", "key", key)
	return nil
}
