// Package archive persists raw fetched documents so failed parses can be
// re-examined and re-imported without another trip to the source site.
package archive

import "context"

// Store saves a document body under a key and returns the stored URI.
// Implementations must be safe for concurrent use by the sync workers.
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// NoOp discards documents. It is the default when archival is not configured.
type NoOp struct{}

// Put does nothing and returns an empty URI.
func (NoOp) Put(context.Context, string, string, []byte) (string, error) {
	return "", nil
}
