package types

import (
	"time"

	"github.com/google/uuid"
)

// NewContractID generates a UUIDv7 contract identifier.
// Panics on clock regression (uuid.Must).
func NewContractID() ContractID {
	return ContractID(uuid.Must(uuid.NewV7()).String())
}

// NewVerificationID generates a UUIDv7 verification identifier.
// Panics on clock regression (uuid.Must).
func NewVerificationID() VerificationID {
	return VerificationID(uuid.Must(uuid.NewV7()).String())
}

// NewAPIKeyID generates a UUIDv7 API key identifier.
// Panics on clock regression (uuid.Must).
func NewAPIKeyID() APIKeyID {
	return APIKeyID(uuid.Must(uuid.NewV7()).String())
}

// ParseContractID validates and converts a string to ContractID.
func ParseContractID(s string) (ContractID, error) {
	_, err := uuid.Parse(s)
	if err != nil {
		return "", err
	}
	return ContractID(s), nil
}

// IDTime extracts the timestamp embedded in a UUIDv7 identifier.
// Returns zero time for invalid UUIDs; caller should check IsZero().
func IDTime(id string) time.Time {
	u, err := uuid.Parse(id)
	if err != nil {
		return time.Time{}
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec)
}
