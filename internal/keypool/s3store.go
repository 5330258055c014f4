package keypool

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of the S3 client the pool store uses.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store keeps pool sheets as CSV objects in an S3 bucket, shared by all
// replicas. Objects live under <prefix>pools/<pool>.csv.
type S3Store struct {
	client S3API
	bucket string
	prefix string
}

// NewS3Store creates an S3-backed pool store.
func NewS3Store(client S3API, bucket, prefix string) *S3Store {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Store{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3Store) key(poolID string) string {
	return s.prefix + "pools/" + poolID + ".csv"
}

// ReadAll loads the full row set for a pool.
func (s *S3Store) ReadAll(ctx context.Context, poolID string) ([]Record, error) {
	key := s.key(poolID)
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("S3 GetObject %s/%s: %w", s.bucket, key, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading pool object body: %w", err)
	}
	return DecodeCSV(data)
}

// WriteAll replaces the pool's entire row set.
func (s *S3Store) WriteAll(ctx context.Context, poolID string, records []Record) error {
	data, err := EncodeCSV(records)
	if err != nil {
		return err
	}
	key := s.key(poolID)
	contentType := "text/csv"
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: &contentType,
	})
	if err != nil {
		return fmt.Errorf("S3 PutObject %s/%s: %w", s.bucket, key, err)
	}
	return nil
}
