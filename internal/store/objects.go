package store

import (
	"bytes"
	"context"
	"fmt"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// DefaultURLExpiry is the lifetime of presigned download URLs.
const DefaultURLExpiry = 15 * time.Minute

// ObjectAPI is the subset of *s3.Client used by Objects.
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Presigner is the subset of *s3.PresignClient used by Objects.
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Objects stores image bytes in one S3 bucket.
type Objects struct {
	client    ObjectAPI
	presigner Presigner
	bucket    string
}

// NewObjects creates an Objects for bucket.
func NewObjects(client ObjectAPI, presigner Presigner, bucket string) *Objects {
	return &Objects{client: client, presigner: presigner, bucket: bucket}
}

// Put uploads data under key.
func (o *Objects) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := o.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &o.bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: &contentType,
	})
	if err != nil {
		return fmt.Errorf("S3 PutObject %s: %w", key, err)
	}

	log.Debug().
		Str("bucket", o.bucket).
		Str("key", key).
		Int("size_bytes", len(data)).
		Msg("Object uploaded to S3")
	return nil
}

// PresignedURL creates a pre-signed GET URL for key.
func (o *Objects) PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	result, err := o.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &o.bucket, Key: &key,
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expiry
	})
	if err != nil {
		return "", fmt.Errorf("presign GetObject: %w", err)
	}
	return result.URL, nil
}
