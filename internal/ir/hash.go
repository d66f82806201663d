package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix leaves room for algorithm migration.
const (
	DomainForm  = "cvxir/form/v1"
	DomainModel = "cvxir/model/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator removes domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// FormHash returns the content hash of a flattened canonical form.
// Equal graphs (same node table, ids and constraint order) hash equal.
func FormHash(g *Graph) (string, error) {
	canonical, err := MarshalCanonical(g)
	if err != nil {
		return "", fmt.Errorf("FormHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainForm, canonical), nil
}

// ValueHash returns the content hash of a canonical value under domain.
func ValueHash(domain string, v IRValue) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("ValueHash: failed to marshal: %w", err)
	}
	return hashWithDomain(domain, canonical), nil
}

// MustFormHash is like FormHash but panics on error.
// Use only in tests or when the graph is known to be valid.
func MustFormHash(g *Graph) string {
	h, err := FormHash(g)
	if err != nil {
		panic(err)
	}
	return h
}
