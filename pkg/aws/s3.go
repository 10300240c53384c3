package aws

import (
	"bytes"
	"context"
	"fmt"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectUploader stores small documents (reports, exports) in object storage.
type ObjectUploader interface {
	PutJSON(ctx context.Context, bucket, key string, body []byte) error
}

// S3Uploader implements ObjectUploader with the S3 transfer manager, which
// switches to multipart uploads for large reports.
type S3Uploader struct {
	uploader *manager.Uploader
}

// NewS3Client creates a new S3 client from AWS config.
func NewS3Client(cfg sdkaws.Config) *s3.Client {
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		// LocalStack serves buckets on the path, not as virtual hosts.
		o.UsePathStyle = endpointOverride() != ""
	})
}

func NewS3Uploader(cfg sdkaws.Config) *S3Uploader {
	return &S3Uploader{uploader: manager.NewUploader(NewS3Client(cfg))}
}

// PutJSON writes body under bucket/key with a JSON content type.
func (u *S3Uploader) PutJSON(ctx context.Context, bucket, key string, body []byte) error {
	if bucket == "" {
		return fmt.Errorf("empty bucket")
	}
	_, err := u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      sdkaws.String(bucket),
		Key:         sdkaws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: sdkaws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3 put %s/%s failed: %w", bucket, key, err)
	}
	return nil
}
