package backend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"doccloud/config"
	"doccloud/internal/blob"
)

func TestNew(t *testing.T) {
	ctx := context.Background()

	for _, backend := range []string{config.BlobLocal, config.BlobMemory, config.BlobPinata} {
		t.Run(backend, func(t *testing.T) {
			s, err := New(ctx, config.BlobConfig{Backend: backend, Dir: t.TempDir(), PinataJWT: "jwt"}, zap.NewNop())
			require.NoError(t, err)
			assert.NotNil(t, s)
		})
	}

	_, err := New(ctx, config.BlobConfig{Backend: "floppy"}, zap.NewNop())
	assert.Error(t, err)
}

func TestLocalBackendUploads(t *testing.T) {
	s, err := New(context.Background(), config.BlobConfig{Backend: config.BlobLocal, Dir: t.TempDir()}, zap.NewNop())
	require.NoError(t, err)

	res, err := s.Upload(context.Background(), []byte("text"), blob.Metadata{Name: "essay", VersionNumber: 1})
	require.NoError(t, err)
	assert.False(t, res.IsDuplicate)
}
