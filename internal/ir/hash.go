package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainDimensionSpacePoint = "contentgraph/dimension-space-point/v1"
	DomainTetheredNode        = "contentgraph/tethered-node/v1"
	DomainStateDigest         = "contentgraph/state-digest/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// DimensionSpacePointHash computes the stable relational key of a set of
// dimension coordinates. The empty coordinate set is valid and hashes "{}".
func DimensionSpacePointHash(coordinates map[string]string) string {
	if coordinates == nil {
		coordinates = map[string]string{}
	}
	canonical, err := MarshalCanonical(coordinates)
	if err != nil {
		// map[string]string always marshals
		panic(fmt.Sprintf("DimensionSpacePointHash: %v", err))
	}
	return hashWithDomain(DomainDimensionSpacePoint, canonical)
}

// TetheredNodeAggregateID derives the aggregate id of a tethered child from
// its parent's id and its node path below that parent. The derivation is
// stable so replays and rebases produce identical ids.
func TetheredNodeAggregateID(parent NodeAggregateID, path string) NodeAggregateID {
	canonical, err := MarshalCanonical(map[string]string{
		"parent": string(parent),
		"path":   path,
	})
	if err != nil {
		panic(fmt.Sprintf("TetheredNodeAggregateID: %v", err))
	}
	return NodeAggregateID(hashWithDomain(DomainTetheredNode, canonical)[:32])
}

// StateDigest hashes an arbitrary canonical document describing projected
// state. Used to verify that replaying the log reproduces identical results.
func StateDigest(state map[string]any) (string, error) {
	canonical, err := MarshalCanonical(state)
	if err != nil {
		return "", fmt.Errorf("StateDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainStateDigest, canonical), nil
}
