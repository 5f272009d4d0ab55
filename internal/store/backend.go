// Package store provides the durable backing layer behind the in-memory
// session and conversation-state caches. A Backend persists opaque JSON
// blobs keyed by user identity; the caches treat it as a crash-recovery
// mechanism, never as the request-path source of truth.
package store

import "context"

// Backend persists one blob per key. Load reports found=false for a
// missing key without an error, so callers can distinguish "absent"
// from "broken".
type Backend interface {
	Load(ctx context.Context, key string) (data []byte, found bool, err error)
	Save(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}
