// Package hashing provides the deterministic content fingerprints used to
// deduplicate submissions.
package hashing

import (
	"crypto/sha1" //nolint:gosec // fingerprint, not a security boundary
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"
)

// Func maps an object summary to its content hash. Implementations are pure.
type Func func(summary string) string

const (
	AlgorithmSHA1   = "sha1"
	AlgorithmSHA256 = "sha256"
	AlgorithmBLAKE3 = "blake3"
)

// SHA1 returns the upper-case hex SHA-1 digest of summary. It is the default
// because existing accession stores were keyed with it.
func SHA1(summary string) string {
	sum := sha1.Sum([]byte(summary)) //nolint:gosec
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// SHA256 returns the lower-case hex SHA-256 digest of summary.
func SHA256(summary string) string {
	sum := sha256.Sum256([]byte(summary))
	return hex.EncodeToString(sum[:])
}

// BLAKE3 returns the lower-case hex 256-bit BLAKE3 digest of summary.
func BLAKE3(summary string) string {
	sum := blake3.Sum256([]byte(summary))
	return hex.EncodeToString(sum[:])
}

// ByName resolves a configured algorithm name.
func ByName(name string) (Func, error) {
	switch strings.ToLower(name) {
	case AlgorithmSHA1, "":
		return SHA1, nil
	case AlgorithmSHA256:
		return SHA256, nil
	case AlgorithmBLAKE3:
		return BLAKE3, nil
	default:
		return nil, fmt.Errorf("unknown hash algorithm %q", name)
	}
}
