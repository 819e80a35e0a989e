package imagecache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"image"
)

// hashKey generates a cache key by hashing the components.
// The key format is: prefix:hash(parts...)
func hashKey(prefix string, parts ...any) string {
	data, _ := json.Marshal(parts)
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%s:%s", prefix, hex.EncodeToString(hash[:]))
}

// Hash computes a SHA-256 hash of the input data.
// Returns the full 64-character hex string.
func Hash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// Key derives the cache key for a file's content rendered at size.
// The absolute path, the content digest and the byte length all take part,
// so rewriting a file under the same path yields a different key.
func Key(absPath string, content []byte, size image.Point) string {
	return hashKey("img", absPath, Hash(content), len(content), size.X, size.Y)
}
