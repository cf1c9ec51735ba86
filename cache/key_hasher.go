package cache

import (
	"crypto/sha256"
	"encoding/base64"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// MaxPlainKeyLength is the longest logical key that is stored verbatim under
// the configured prefix. Longer keys are replaced by a digest so storage keys
// stay bounded regardless of statement size.
const MaxPlainKeyLength = 128

// KeyHasher maps logical cache keys to storage keys. Keys at or under
// MaxPlainKeyLength are kept readable for inspection with store tooling;
// anything longer trades readability for a fixed-size SHA-256 digest.
// The mapping is deterministic, so get, put, and remove for the same logical
// key always address the same storage key.
type KeyHasher struct {
	prefix string
}

// NewKeyHasher creates a KeyHasher that prepends prefix to every storage key.
func NewKeyHasher(prefix string) *KeyHasher {
	return &KeyHasher{prefix: prefix}
}

// Prefix returns the storage-key prefix.
func (h *KeyHasher) Prefix() string {
	return h.prefix
}

// StorageKey returns the storage key for the given logical key.
func (h *KeyHasher) StorageKey(key string) string {
	if len(key) <= MaxPlainKeyLength {
		return h.prefix + key
	}
	sum := sha256.Sum256([]byte(key))
	return h.prefix + base64.StdEncoding.EncodeToString(sum[:])
}

// Fingerprint returns a short, stable identifier for a key, suitable for log
// lines where the raw key (often full statement text) would be noise or leak
// data. It is not a storage key.
func Fingerprint(key string) string {
	return strconv.FormatUint(xxhash.Sum64String(key), 16)
}
