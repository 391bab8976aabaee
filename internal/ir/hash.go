package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainQuery is the domain prefix for query fingerprints.
// The version suffix allows the fingerprint layout to change.
const DomainQuery = "graphq/query/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint hashes a canonical description of a query.
// Two queries with the same description share a fingerprint, which lets
// logs and metrics group executions of the same query shape.
func Fingerprint(desc IRObject) (string, error) {
	canonical, err := MarshalCanonical(desc)
	if err != nil {
		return "", fmt.Errorf("Fingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainQuery, canonical), nil
}
