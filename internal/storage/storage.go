// Package storage provides the object storage port used by the ingress
// handler, the background worker, and the status endpoint, together with
// the locator codec that maps between stored keys and the public
// locators carried in events and report state.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned by Get when the key does not exist in
// the backend.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStorage abstracts the blob backend. Implementations are bound to
// a single bucket (or base directory) chosen at construction time.
type ObjectStorage interface {
	// Put stores an object under the given key.
	Put(ctx context.Context, key string, reader io.Reader, contentType string) error

	// Get retrieves an object by key. The caller owns the returned
	// reader and must close it.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}
