// Package kv provides the durable key-value slots the tracker persists
// into: one named slot per user per concern (the full protocol aggregate,
// the theme preference). Values are opaque JSON blobs written as a unit.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a slot has never been written.
var ErrNotFound = errors.New("kv: slot not found")

// ErrUnavailable indicates the backing store could not be reached.
var ErrUnavailable = errors.New("kv: store unavailable")

// Store reads and writes named slots for a user. Implementations must
// treat each Put as a full-slot replacement; there is no partial update.
type Store interface {
	Get(ctx context.Context, userID, slot string) ([]byte, error)
	Put(ctx context.Context, userID, slot string, value []byte) error
}
