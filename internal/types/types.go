// Package types provides domain models shared across the contract matching
// engine components.
//
// types.go and errors.go have no dependencies outside the standard library.
// ID utilities in ids.go import uuid.
package types

import (
	"fmt"
	"strings"
)

// ContractID represents a UUIDv7 identifier for a stored contract.
type ContractID string

// VerificationID represents a UUIDv7 identifier for a recorded verification.
type VerificationID string

// APIKeyID represents a UUIDv7 identifier for an issued API key.
type APIKeyID string

// SpecVersion is the pact specification version used when serialising
// matching rules and generators.
type SpecVersion int

// Specification versions, in release order.
const (
	SpecUnknown SpecVersion = iota
	SpecV1
	SpecV1_1
	SpecV2
	SpecV3
	SpecV4
)

// String returns the version in its conventional "V3" form.
func (v SpecVersion) String() string {
	switch v {
	case SpecV1:
		return "V1"
	case SpecV1_1:
		return "V1_1"
	case SpecV2:
		return "V2"
	case SpecV3:
		return "V3"
	case SpecV4:
		return "V4"
	default:
		return "Unknown"
	}
}

// AtLeast reports whether v is the same as or newer than other.
func (v SpecVersion) AtLeast(other SpecVersion) bool {
	return v >= other
}

// ParseSpecVersion accepts "v3", "V3", "3", "3.0.0" and similar forms.
func ParseSpecVersion(s string) (SpecVersion, error) {
	norm := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "v")
	switch norm {
	case "1", "1.0", "1.0.0":
		return SpecV1, nil
	case "1_1", "1.1", "1.1.0":
		return SpecV1_1, nil
	case "2", "2.0", "2.0.0":
		return SpecV2, nil
	case "3", "3.0", "3.0.0":
		return SpecV3, nil
	case "4", "4.0", "4.0.0":
		return SpecV4, nil
	}
	return SpecUnknown, fmt.Errorf("unknown specification version: %q", s)
}

// Evaluation limits.
const (
	// MaxPlanDepth bounds recursion while walking a plan tree.
	MaxPlanDepth = 256

	// MaxPlanNodes bounds the size of a plan document accepted by the loader.
	MaxPlanNodes = 100000

	// MaxPayloadSize limits request bodies and plan documents handled by the service.
	MaxPayloadSize = 4 * 1024 * 1024
)
