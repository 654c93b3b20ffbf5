// Package fingerprint derives deterministic digests from conversation
// history. A fingerprint is the cache key that lets a stateless request
// recover the continuation token of a previous exchange: the same ordered
// message contents always hash to the same key.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// separator joins turn contents before hashing. It is part of the key
// derivation contract: changing it invalidates every stored mapping.
const separator = ","

// Conversation hashes the ordered turn contents into a lowercase hex digest.
// Order-sensitive: ["a","b"] and ["b","a"] produce different digests.
func Conversation(contents []string) string {
	h := sha256.Sum256([]byte(strings.Join(contents, separator)))
	return hex.EncodeToString(h[:])
}

// Model synthesizes a per-model system_fingerprint string from a hash of the
// model name. The upstream exposes no authoritative fingerprint; this value
// is cosmetic and must not be relied on for anything but response shape.
func Model(model string) string {
	h := sha256.Sum256([]byte(model))
	return "fp_" + hex.EncodeToString(h[:])[:10]
}
