package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// LedgerStore persists one Ledger per source. A missing ledger is not an
// error: Load returns a zero ledger so a first poll starts from the
// source's default lookback window.
type LedgerStore interface {
	Load(ctx context.Context, source string) (*Ledger, error)
	Save(ctx context.Context, source string, ledger *Ledger) error
}

// FileLedgerStore keeps ledgers as JSON files under a local directory.
type FileLedgerStore struct {
	dir string
}

// NewFileLedgerStore creates a file-backed ledger store rooted at dir.
func NewFileLedgerStore(dir string) (*FileLedgerStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create ledger dir %s: %w", dir, err)
	}
	return &FileLedgerStore{dir: dir}, nil
}

func (s *FileLedgerStore) path(source string) string {
	return filepath.Join(s.dir, source+".json")
}

// Load reads the ledger for a source; a missing file yields a zero ledger.
func (s *FileLedgerStore) Load(_ context.Context, source string) (*Ledger, error) {
	data, err := os.ReadFile(s.path(source))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Ledger{}, nil
		}
		return nil, fmt.Errorf("read ledger %s: %w", source, err)
	}
	var l Ledger
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("parse ledger %s: %w", source, err)
	}
	return &l, nil
}

// Save writes the ledger through a temp file and rename.
func (s *FileLedgerStore) Save(_ context.Context, source string, ledger *Ledger) error {
	data, err := json.Marshal(ledger)
	if err != nil {
		return err
	}
	tmp := s.path(source) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write ledger %s: %w", source, err)
	}
	if err := os.Rename(tmp, s.path(source)); err != nil {
		return fmt.Errorf("replace ledger %s: %w", source, err)
	}
	return nil
}

// S3API is the subset of the S3 client the ledger store uses.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3LedgerStore keeps ledgers as JSON objects under
// <prefix>ledgers/<source>.json, shared by all replicas.
type S3LedgerStore struct {
	client S3API
	bucket string
	prefix string
}

// NewS3LedgerStore creates an S3-backed ledger store.
func NewS3LedgerStore(client S3API, bucket, prefix string) *S3LedgerStore {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3LedgerStore{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3LedgerStore) key(source string) string {
	return s.prefix + "ledgers/" + source + ".json"
}

// Load reads the ledger for a source; a missing object yields a zero
// ledger, not an error.
func (s *S3LedgerStore) Load(ctx context.Context, source string) (*Ledger, error) {
	key := s.key(source)
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return &Ledger{}, nil
		}
		return nil, fmt.Errorf("S3 GetObject %s/%s: %w", s.bucket, key, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading ledger object body: %w", err)
	}
	var l Ledger
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("parse ledger %s: %w", source, err)
	}
	return &l, nil
}

// Save writes the ledger object.
func (s *S3LedgerStore) Save(ctx context.Context, source string, ledger *Ledger) error {
	data, err := json.Marshal(ledger)
	if err != nil {
		return err
	}
	key := s.key(source)
	contentType := "application/json"
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

// isNotFound reports whether an S3 error indicates a missing object.
// AWS SDK v2 surfaces these as errors containing "NoSuchKey" or "NotFound".
func isNotFound(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "NoSuchKey") || strings.Contains(msg, "NotFound") ||
		strings.Contains(msg, "404")
}
