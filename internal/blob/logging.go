package blob

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type loggingStore struct {
	s      Store
	logger *zap.Logger
}

// WithLogging returns a Store that delegates to s, logging each upload.
func WithLogging(s Store, logger *zap.Logger) Store {
	return &loggingStore{s: s, logger: logger}
}

func (l *loggingStore) Upload(ctx context.Context, data []byte, meta Metadata) (Result, error) {
	start := time.Now()
	res, err := l.s.Upload(ctx, data, meta)
	fields := []zap.Field{
		zap.String("name", meta.Name),
		zap.Int("versionNumber", meta.VersionNumber),
		zap.String("previousExternalId", meta.PreviousExternalID),
		zap.Int("bytes", len(data)),
		zap.Duration("took", time.Since(start)),
	}
	if err != nil {
		l.logger.Error("blob upload failed", append(fields, zap.Error(err))...)
		return res, err
	}
	l.logger.Info("blob uploaded", append(fields,
		zap.String("cid", res.ContentAddress),
		zap.String("externalId", res.ExternalID),
		zap.Bool("duplicate", res.IsDuplicate),
	)...)
	return res, nil
}
