// Checksum strings use a prefixed format: "algorithm:hexvalue"
// (e.g. "sha256:c0ffee123..."). Unprefixed values are assumed legacy sha256.
package blockmap

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"
)

// ChecksumAlgorithm represents supported checksum algorithms.
type ChecksumAlgorithm int

const (
	ChecksumSHA256 ChecksumAlgorithm = iota
	ChecksumSHA512
)

func (c ChecksumAlgorithm) String() string {
	if c == ChecksumSHA512 {
		return "sha512"
	}
	return "sha256"
}

// ParseChecksum splits a checksum string into algorithm and hex value.
func ParseChecksum(checksumStr string) (ChecksumAlgorithm, string, error) {
	if !strings.Contains(checksumStr, ":") {
		return ChecksumSHA256, checksumStr, nil
	}
	parts := strings.SplitN(checksumStr, ":", 2)
	switch parts[0] {
	case "sha256":
		return ChecksumSHA256, parts[1], nil
	case "sha512":
		return ChecksumSHA512, parts[1], nil
	default:
		return ChecksumSHA256, "", fmt.Errorf("unknown checksum algorithm: %s", parts[0])
	}
}

// CalculateChecksum calculates the prefixed checksum of data.
func CalculateChecksum(data []byte, algorithm ChecksumAlgorithm) string {
	var h hash.Hash
	switch algorithm {
	case ChecksumSHA512:
		h = sha512.New()
	default:
		h = sha256.New()
	}
	h.Write(data)
	return algorithm.String() + ":" + hex.EncodeToString(h.Sum(nil))
}

// VerifyChecksum verifies data against a prefixed checksum string.
func VerifyChecksum(data []byte, checksumStr string) (bool, error) {
	algo, expected, err := ParseChecksum(checksumStr)
	if err != nil {
		return false, err
	}
	actual := CalculateChecksum(data, algo)
	return strings.TrimPrefix(actual, algo.String()+":") == expected, nil
}
