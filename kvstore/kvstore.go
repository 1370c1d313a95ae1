// Package kvstore provides the key-value backends and result caches used by
// imagesort: local file, SQLite, Valkey and in-memory.
package kvstore

import (
	"crypto/sha256"
	"encoding/hex"

	imagesort "github.com/anatolykoptev/go-imagesort"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = imagesort.ErrNotFound

var (
	_ imagesort.KV = (*FileStore)(nil)
	_ imagesort.KV = (*SQLiteStore)(nil)
	_ imagesort.KV = (*ValkeyStore)(nil)
	_ imagesort.KV = (*MemoryStore)(nil)

	_ imagesort.Cache = (*MemoryCache)(nil)
	_ imagesort.Cache = (*ValkeyCache)(nil)
)

// hashKey builds a namespaced cache key from a prefix and a value.
func hashKey(prefix, value string) string {
	return "imagesort:v1:" + prefix + ":" + digest(value)
}

func digest(s string) string {
	hash := sha256.Sum256([]byte(s))
	return hex.EncodeToString(hash[:])
}
