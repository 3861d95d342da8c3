// Package chunkid derives content fingerprints and stable identifiers for
// document chunks. Identifiers are safe to use as external index keys.
package chunkid

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
)

// hashPrefixLen is how much of the content hash goes into the identifier key.
const hashPrefixLen = 16

// Fingerprint returns the hex SHA-256 of the trimmed chunk content.
func Fingerprint(content string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(content)))
	return hex.EncodeToString(sum[:])
}

// ID composes source, page, position and content hash into a 40 character
// hex identifier. Changing any input changes the identifier.
func ID(source, page string, position int, hash string) string {
	h := hash
	if len(h) > hashPrefixLen {
		h = h[:hashPrefixLen]
	}
	key := fmt.Sprintf("%s::page=%s::chunk=%d::h=%s", filepath.Clean(source), page, position, h)
	sum := sha1.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}
