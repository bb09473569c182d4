package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Client is the subset of the S3 API the adapter uses, an interface so
// tests can stub it without a real bucket.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3 is a cloud blob Adapter backed by an S3 bucket, with an optional key
// prefix so several environments can share one bucket.
type S3 struct {
	client S3Client
	bucket string
	prefix string
}

// NewS3 creates an S3 storage adapter.
func NewS3(client S3Client, bucket, prefix string) (*S3, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &S3{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}, nil
}

func (s *S3) objectKey(key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	if s.prefix != "" {
		return s.prefix + "/" + key, nil
	}
	return key, nil
}

// Put writes the object under key. Attachments are small enough that
// buffering to learn the content length beats a multipart upload.
func (s *S3) Put(ctx context.Context, key string, r io.Reader) (int64, error) {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return 0, err
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, r)
	if err != nil {
		return 0, fmt.Errorf("failed to buffer object: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(objectKey),
		Body:          bytes.NewReader(buf.Bytes()),
		ContentLength: aws.Int64(n),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to put object: %w", err)
	}

	return n, nil
}

// Get opens the object for reading.
func (s *S3) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get object: %w", err)
	}

	return out.Body, nil
}

// Delete removes the object. S3 deletes are idempotent already.
func (s *S3) Delete(ctx context.Context, key string) error {
	objectKey, err := s.objectKey(key)
	if err != nil {
		return err
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}

	return nil
}
