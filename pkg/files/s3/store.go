// Package s3 provides an S3 implementation of the file store.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/txn2/record-versions/pkg/files"
)

const defaultRegion = "us-east-1"

// Config holds S3 file store configuration.
type Config struct {
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	Bucket      string `yaml:"bucket"`
	Prefix      string `yaml:"prefix"`
	AccessKeyID string `yaml:"access_key_id"`
	SecretKey   string `yaml:"secret_key"`
}

// Client defines the S3 operations used by the store.
// This interface allows for mocking in tests.
type Client interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Store implements files.Store on an S3 bucket.
type Store struct {
	cfg    Config
	client Client
}

// New creates a new S3 file store with an existing client.
func New(cfg Config, client Client) (*Store, error) {
	if client == nil {
		return nil, errors.New("s3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	return &Store{cfg: cfg, client: client}, nil
}

// NewFromConfig creates a new S3 file store with a client built from config.
// Static credentials are used when given, otherwise the default AWS chain.
func NewFromConfig(ctx context.Context, cfg Config) (*Store, error) {
	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return New(cfg, client)
}

// Read fetches an object.
func (s *Store) Read(ctx context.Context, p string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.key(p)),
	})
	if err != nil {
		return nil, fmt.Errorf("getting object %s: %w", p, err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading object %s: %w", p, err)
	}
	return data, nil
}

// Write uploads an object, replacing any existing content.
func (s *Store) Write(ctx context.Context, p string, data []byte) error {
	contentType := mime.TypeByExtension(path.Ext(p))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(s.key(p)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("putting object %s: %w", p, err)
	}
	return nil
}

func (s *Store) key(p string) string {
	p = strings.TrimPrefix(p, "/")
	if s.cfg.Prefix == "" {
		return p
	}
	return strings.TrimSuffix(s.cfg.Prefix, "/") + "/" + p
}

// Verify interface compliance.
var _ files.Store = (*Store)(nil)
