package archive

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/bilgisen/newswire/internal/config"
	"github.com/bilgisen/newswire/internal/models"
)

// PutObjectAPI is the part of the S3 client the archiver uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// R2Archiver stores raw provider payloads in a Cloudflare R2 bucket.
type R2Archiver struct {
	client PutObjectAPI
	bucket string
	now    func() time.Time
}

// NewR2Archiver builds an S3 client pointed at the configured R2 endpoint.
func NewR2Archiver(ctx context.Context, cfg *config.Config) (*R2Archiver, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.R2AccessKey, cfg.R2SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load R2 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.R2Endpoint)
		o.UsePathStyle = true
	})

	return New(client, cfg.R2Bucket), nil
}

func New(client PutObjectAPI, bucket string) *R2Archiver {
	return &R2Archiver{
		client: client,
		bucket: bucket,
		now:    time.Now,
	}
}

// Key returns the object key of a payload fetched at t.
func Key(category models.Category, t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("raw/%s/%s-%d.json", t.Format("2006/01/02"), category, t.Unix())
}

func (a *R2Archiver) Archive(ctx context.Context, category models.Category, payload []byte) error {
	key := Key(category, a.now())

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}
