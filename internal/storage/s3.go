package storage

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"

	"github.com/MeKo-Tech/pixkit/internal/version"
)

const defaultS3Region = "us-east-1"

// S3Store uploads files to a bucket below an optional key prefix.
// Credentials come from the usual AWS environment, shared config or
// instance role chain.
type S3Store struct {
	bucket   string
	prefix   string
	uploader s3manageriface.UploaderAPI
}

// NewS3Store creates an S3 store with a session built from opts.
func NewS3Store(bucket, prefix string, opts S3Options) (*S3Store, error) {
	region := opts.Region
	if region == "" {
		region = defaultS3Region
	}
	cfg := &aws.Config{
		Region:           aws.String(region),
		S3ForcePathStyle: aws.Bool(opts.ForcePathStyle),
	}
	if opts.Endpoint != "" {
		cfg.Endpoint = aws.String(opts.Endpoint)
	}

	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to set up aws session: %w", err)
	}
	sess.Handlers.Build.PushBack(request.MakeAddToUserAgentHandler(version.Name, version.Version))
	return NewS3StoreWithUploader(bucket, prefix, s3manager.NewUploader(sess)), nil
}

// NewS3StoreWithUploader creates an S3 store around an existing uploader.
func NewS3StoreWithUploader(bucket, prefix string, uploader s3manageriface.UploaderAPI) *S3Store {
	return &S3Store{bucket: bucket, prefix: prefix, uploader: uploader}
}

// Location returns the s3:// URI of key.
func (s *S3Store) Location(key string) string {
	return "s3://" + s.bucket + "/" + s.objectKey(key)
}

func (s *S3Store) objectKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

// Put uploads r to the bucket.
func (s *S3Store) Put(ctx context.Context, key, contentType string, r io.Reader) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}

	input := &s3manager.UploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(k)),
		Body:   r,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.uploader.UploadWithContext(ctx, input); err != nil {
		return "", fmt.Errorf("failed to upload s3://%s/%s: %w", s.bucket, s.objectKey(k), err)
	}
	return s.Location(k), nil
}
