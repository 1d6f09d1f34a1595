// Package blob describes the content-addressed store that every document
// version is uploaded to.
package blob

import (
	"context"
	"errors"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// ErrUpload is wrapped by every Upload failure.
var ErrUpload = errors.New("blob upload failed")

// Metadata travels with an upload. The store may use it for its own
// provenance chaining; the caller does not interpret it.
type Metadata struct {
	Name               string
	VersionNumber      int
	PreviousExternalID string
}

// Result describes a stored object.
type Result struct {
	ContentAddress string
	ExternalID     string
	// URL is a public link to the object, when the store offers one.
	URL string
	// IsDuplicate is true iff the content was already present in the store.
	IsDuplicate bool
}

// Store is a content-addressed upload sink.
type Store interface {
	Upload(ctx context.Context, data []byte, meta Metadata) (Result, error)
}

// StoreFunc adapts a function to Store.
type StoreFunc func(ctx context.Context, data []byte, meta Metadata) (Result, error)

func (f StoreFunc) Upload(ctx context.Context, data []byte, meta Metadata) (Result, error) {
	return f(ctx, data, meta)
}

var prefix = cid.Prefix{
	Version:  1,
	Codec:    cid.Raw,
	MhType:   multihash.SHA2_256,
	MhLength: -1,
}

// ContentAddress computes the CIDv1 (raw codec, sha2-256) of data, the same
// address IPFS assigns to a single raw block.
func ContentAddress(data []byte) (string, error) {
	c, err := prefix.Sum(data)
	if err != nil {
		return "", err
	}
	return c.String(), nil
}
