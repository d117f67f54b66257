package types

import "github.com/google/uuid"

// SubjectID identifies a policy subject. UUIDv7 string alias: type safety
// with plain JSON string serialization, time-ordered for B-tree clustering.
type SubjectID string

// VersionID identifies a rule version.
type VersionID string

// RequirementID identifies a requirement row.
type RequirementID string

// ParsedRuleID identifies an upstream parsed-rule record.
type ParsedRuleID string

// NewSubjectID generates a UUIDv7 subject identifier.
func NewSubjectID() SubjectID {
	return SubjectID(uuid.Must(uuid.NewV7()).String())
}

// NewVersionID generates a UUIDv7 rule version identifier.
func NewVersionID() VersionID {
	return VersionID(uuid.Must(uuid.NewV7()).String())
}

// NewRequirementID generates a UUIDv7 requirement identifier.
func NewRequirementID() RequirementID {
	return RequirementID(uuid.Must(uuid.NewV7()).String())
}

// NewParsedRuleID generates a UUIDv7 parsed-rule identifier.
func NewParsedRuleID() ParsedRuleID {
	return ParsedRuleID(uuid.Must(uuid.NewV7()).String())
}

// ParseVersionID validates and converts a string to VersionID.
// Rejects malformed UUIDs to prevent invalid IDs from entering the system.
func ParseVersionID(s string) (VersionID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return VersionID(s), nil
}

// ParseParsedRuleID validates and converts a string to ParsedRuleID.
func ParseParsedRuleID(s string) (ParsedRuleID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return ParsedRuleID(s), nil
}
