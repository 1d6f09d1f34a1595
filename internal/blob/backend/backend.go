// Package backend builds the configured blob store.
package backend

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"doccloud/config"
	"doccloud/internal/blob"
	"doccloud/internal/blob/aws_s3"
	"doccloud/internal/blob/local"
	"doccloud/internal/blob/mem"
	"doccloud/internal/blob/pinata"
)

// New returns the blob store selected by cfg.Backend, wrapped so every
// upload is logged.
func New(ctx context.Context, cfg config.BlobConfig, logger *zap.Logger) (blob.Store, error) {
	var s blob.Store
	switch cfg.Backend {
	case config.BlobLocal:
		s = local.New(cfg.Dir)
	case config.BlobMemory:
		s = mem.New()
	case config.BlobPinata:
		s = pinata.NewClient(pinata.Config{
			JWT:       cfg.PinataJWT,
			Gateway:   cfg.PinataGateway,
			UploadURL: cfg.PinataUploadURL,
		})
	case config.BlobS3:
		client, err := aws_s3.NewClient(ctx, aws_s3.Config{
			Bucket:   cfg.S3Bucket,
			Region:   cfg.S3Region,
			Prefix:   cfg.S3Prefix,
			Endpoint: cfg.S3Endpoint,

			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		}, aws_s3.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		s = client
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.Backend)
	}
	return blob.WithLogging(s, logger.Named("blob")), nil
}
