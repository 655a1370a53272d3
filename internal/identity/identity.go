// Package identity defines the immutable on-disk identity of a media item
// and the base36 bucket key space used to shard the media tree.
package identity

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// BucketKeyLength is the fixed width of a bucket key.
const BucketKeyLength = 3

// ItemTokenLength is the fixed width of a generated item token.
const ItemTokenLength = 12

// MaxBucketKey is the last key in the bucket key space.
const MaxBucketKey = "zzz"

const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// ErrBucketSpaceExhausted is returned when the bucket key space has no key
// left after "zzz".
var ErrBucketSpaceExhausted = errors.New("bucket key space exhausted")

// Identity is the immutable triplet that locates a media item on disk:
//
//	<root>/<bucket>/<item>/<item>.<ext>
//	<root>/<bucket>/<item>/assets/...
//
// It never builds absolute paths; callers join against their media root.
type Identity struct {
	Bucket string `json:"bucket"`
	Item   string `json:"item"`
	Ext    string `json:"ext"`
}

// FileName returns "<item>.<ext>", or just the item when ext is empty.
func (id Identity) FileName() string {
	if id.Ext == "" {
		return id.Item
	}
	return id.Item + "." + id.Ext
}

// RelDir returns the directory holding the media file and its assets.
func (id Identity) RelDir() string {
	return id.Bucket + "/" + id.Item
}

// VideoRelPath returns the relative path of the media file itself.
func (id Identity) VideoRelPath() string {
	return id.RelDir() + "/" + id.FileName()
}

// AssetsRelDir returns the relative directory for derived assets.
func (id Identity) AssetsRelDir() string {
	return id.RelDir() + "/assets"
}

// Key returns the uniqueness key of the triplet.
func (id Identity) Key() string {
	return id.Bucket + "/" + id.Item + "." + id.Ext
}

// NormalizeBucket converts a bucket key of unknown provenance into the
// canonical 3-character base36 form. Stores and older trees may carry
// unpadded ("2", "a9") or decimal-looking ("01") keys; all parse as base36
// and are zero-padded. An empty or unparseable key returns an error.
func NormalizeBucket(key string) (string, error) {
	k := strings.ToLower(strings.TrimSpace(key))
	if k == "" {
		return "", fmt.Errorf("empty bucket key")
	}
	n, err := strconv.ParseUint(k, 36, 64)
	if err != nil {
		return "", fmt.Errorf("bucket key %q is not base36: %w", key, err)
	}
	if n >= 36*36*36 {
		return "", fmt.Errorf("bucket key %q out of range: %w", key, ErrBucketSpaceExhausted)
	}
	return FormatBucket(n), nil
}

// FormatBucket renders a numeric bucket value as a 3-character base36 key.
func FormatBucket(n uint64) string {
	var b [BucketKeyLength]byte
	for i := BucketKeyLength - 1; i >= 0; i-- {
		b[i] = base36Alphabet[n%36]
		n /= 36
	}
	return string(b[:])
}

// NextBucket returns the key immediately after the given key, failing once
// the space past "zzz" would be needed.
func NextBucket(key string) (string, error) {
	k, err := NormalizeBucket(key)
	if err != nil {
		return "", err
	}
	if k == MaxBucketKey {
		return "", fmt.Errorf("no bucket after %q: %w", key, ErrBucketSpaceExhausted)
	}
	n, _ := strconv.ParseUint(k, 36, 64)
	return FormatBucket(n + 1), nil
}

// IsBucketKey reports whether s is a canonical 3-character base36 key.
func IsBucketKey(s string) bool {
	if len(s) != BucketKeyLength {
		return false
	}
	for _, c := range s {
		if !strings.ContainsRune(base36Alphabet, c) {
			return false
		}
	}
	return true
}

// NewItemToken generates an opaque 12-character base36 token. Collisions
// are guarded by the store's uniqueness constraint, not by this generator.
func NewItemToken() string {
	buf := make([]byte, ItemTokenLength)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms
		panic(fmt.Sprintf("identity: read random: %v", err))
	}
	for i, b := range buf {
		buf[i] = base36Alphabet[int(b)%len(base36Alphabet)]
	}
	return string(buf)
}
