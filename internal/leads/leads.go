// Package leads captures investor-lead form submissions. This is an
// independent append-only path: it shares the tabular backend family with
// key pools but none of the fulfillment invariants.
package leads

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Lead is one captured contact.
type Lead struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Company string `json:"company,omitempty"`
	Message string `json:"message,omitempty"`
}

// Store appends leads to a sheet.
type Store interface {
	Append(ctx context.Context, lead Lead) error
}

var header = []string{"date", "name", "email", "company", "message"}

func row(lead Lead) []string {
	return []string{
		time.Now().UTC().Format(time.RFC3339),
		lead.Name, lead.Email, lead.Company, lead.Message,
	}
}

// FileStore appends leads to a local CSV file.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed lead sheet at dir/<sheet>.csv.
func NewFileStore(dir, sheet string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create leads dir %s: %w", dir, err)
	}
	return &FileStore{path: filepath.Join(dir, sheet+".csv")}, nil
}

// Append writes one lead row, creating the sheet with a header first.
func (s *FileStore) Append(_ context.Context, lead Lead) error {
	_, statErr := os.Stat(s.path)
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open lead sheet: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if os.IsNotExist(statErr) {
		if err := w.Write(header); err != nil {
			return err
		}
	}
	if err := w.Write(row(lead)); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// S3API is the subset of the S3 client the lead store uses.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store appends leads to a CSV object. Lead capture is low-volume and
// tolerant of the read-append-write round trip.
type S3Store struct {
	client S3API
	bucket string
	key    string
}

// NewS3Store creates an S3-backed lead sheet at <prefix><sheet>.csv.
func NewS3Store(client S3API, bucket, prefix, sheet string) *S3Store {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Store{client: client, bucket: bucket, key: prefix + sheet + ".csv"}
}

// Append fetches the current sheet, appends one row, and writes it back.
func (s *S3Store) Append(ctx context.Context, lead Lead) error {
	var buf bytes.Buffer

	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err == nil {
		_, copyErr := io.Copy(&buf, resp.Body)
		resp.Body.Close()
		if copyErr != nil {
			return fmt.Errorf("read lead sheet: %w", copyErr)
		}
	} else if !isNotFound(err) {
		return fmt.Errorf("S3 GetObject %s/%s: %w", s.bucket, s.key, err)
	}

	w := csv.NewWriter(&buf)
	if buf.Len() == 0 {
		if err := w.Write(header); err != nil {
			return err
		}
	}
	if err := w.Write(row(lead)); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	contentType := "text/csv"
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: &contentType,
	})
	if err != nil {
		return fmt.Errorf("S3 PutObject %s/%s: %w", s.bucket, s.key, err)
	}
	return nil
}

func isNotFound(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "NoSuchKey") || strings.Contains(msg, "NotFound") ||
		strings.Contains(msg, "404")
}
