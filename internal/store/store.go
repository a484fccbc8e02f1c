// Package store persists the API's JSON documents. A document is a named
// blob that is always loaded and rewritten whole; backends only differ in
// where the bytes live.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Blobs.Load when the document was never saved.
var ErrNotFound = errors.New("document not found")

// Blobs is the durable storage behind every document.
type Blobs interface {
	Load(ctx context.Context, name string) ([]byte, error)
	Save(ctx context.Context, name string, data []byte) error
	Ping(ctx context.Context) error
}
