// Package blobstore persists feedback images. Keys are slash-separated
// relative paths such as "positif/chat/<name>.jpg".
package blobstore

import (
	"context"
	"fmt"
	"path"
	"strings"
)

// Store writes and removes image blobs. Put returns the location recorded
// in the feedback row.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, location string) error
}

func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") {
		return fmt.Errorf("invalid blob key %q", key)
	}
	if clean := path.Clean(key); clean != key || strings.HasPrefix(clean, "..") {
		return fmt.Errorf("invalid blob key %q", key)
	}
	return nil
}
