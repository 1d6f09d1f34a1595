package blob

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestContentAddressIsDeterministic(t *testing.T) {
	a, err := ContentAddress([]byte("hello"))
	require.NoError(t, err)
	b, err := ContentAddress([]byte("hello"))
	require.NoError(t, err)
	c, err := ContentAddress([]byte("hello!"))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.True(t, strings.HasPrefix(a, "bafkrei"), "raw-codec CIDv1 in base32, got %s", a)
}

func TestContentAddressOfEmptyInput(t *testing.T) {
	addr, err := ContentAddress(nil)
	require.NoError(t, err)
	assert.Equal(t, "bafkreihdwdcefgh4dqkjv67uzcmw7ojee6xedzdetojuzjevtenxquvyku", addr)
}

func TestWithLogging(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	calls := 0
	inner := StoreFunc(func(ctx context.Context, data []byte, meta Metadata) (Result, error) {
		calls++
		if calls == 2 {
			return Result{}, errors.New("boom")
		}
		return Result{ContentAddress: "bafk", ExternalID: "id-1"}, nil
	})

	s := WithLogging(inner, zap.New(core))

	res, err := s.Upload(context.Background(), []byte("x"), Metadata{Name: "essay", VersionNumber: 1})
	require.NoError(t, err)
	assert.Equal(t, "bafk", res.ContentAddress)

	_, err = s.Upload(context.Background(), []byte("y"), Metadata{Name: "essay", VersionNumber: 2})
	assert.EqualError(t, err, "boom")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "blob uploaded", entries[0].Message)
	assert.Equal(t, "blob upload failed", entries[1].Message)
	assert.Equal(t, "essay", entries[1].ContextMap()["name"])
}
