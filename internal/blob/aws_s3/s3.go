// Package aws_s3 stores document versions in an S3 bucket keyed by content
// address.
package aws_s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"doccloud/internal/blob"
)

// Object metadata keys. S3 lower-cases user metadata keys.
const (
	metaExternalID   = "external-id"
	metaName         = "document-name"
	metaVersion      = "version-number"
	metaPreviousID   = "previous-external-id"
	contentTypePlain = "text/plain; charset=utf-8"
)

type Config struct {
	Bucket   string
	Region   string
	Prefix   string
	Endpoint string

	// Static credentials; the default provider chain is used when empty.
	AccessKeyID     string
	SecretAccessKey string
}

// API is the subset of the S3 client the store uses.
type API interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var _ blob.Store = &Store{}

type Store struct {
	api    API
	config Config
	logger *zap.Logger
}

type Option func(*Store)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New wraps an existing client.
func New(api API, cfg Config, opts ...Option) *Store {
	s := &Store{api: api, config: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewClient builds an S3 client from the default AWS credential chain.
func NewClient(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("aws_s3: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return New(client, cfg, opts...), nil
}

func (s *Store) key(addr string) string {
	return s.config.Prefix + addr
}

// Upload stores data under its content address unless an object with that
// key already exists.
func (s *Store) Upload(ctx context.Context, data []byte, meta blob.Metadata) (blob.Result, error) {
	addr, err := blob.ContentAddress(data)
	if err != nil {
		return blob.Result{}, fmt.Errorf("%w: %w", blob.ErrUpload, err)
	}
	key := s.key(addr)

	head, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(key),
	})
	switch {
	case err == nil:
		return blob.Result{ContentAddress: addr, ExternalID: head.Metadata[metaExternalID], IsDuplicate: true}, nil
	case !isNotFound(err):
		return blob.Result{}, fmt.Errorf("%w: aws_s3: head %s: %w", blob.ErrUpload, key, err)
	}

	externalID := uuid.NewString()
	_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:            aws.String(s.config.Bucket),
		Key:               aws.String(key),
		Body:              bytes.NewReader(data),
		ContentType:       aws.String(contentTypePlain),
		ChecksumAlgorithm: types.ChecksumAlgorithmSha256,
		Metadata: map[string]string{
			metaExternalID: externalID,
			metaName:       meta.Name,
			metaVersion:    strconv.Itoa(meta.VersionNumber),
			metaPreviousID: meta.PreviousExternalID,
		},
	})
	if err != nil {
		var noBucket *types.NoSuchBucket
		if errors.As(err, &noBucket) {
			s.logger.Error("bucket does not exist", zap.String("bucket", s.config.Bucket))
		}
		return blob.Result{}, fmt.Errorf("%w: aws_s3: put %s: %w", blob.ErrUpload, key, err)
	}

	return blob.Result{ContentAddress: addr, ExternalID: externalID}, nil
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
