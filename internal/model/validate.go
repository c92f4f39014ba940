package model

import "strings"

// Validate checks an anchor candidate: name, then position, then description.
// It stops at the first failure.
func Validate(in AnchorInput) error {
	return validateFields(in.Name, in.Position, in.Description)
}

// ValidateRecord applies Validate's checks to a full record.
func ValidateRecord(r AnchorRecord) error {
	return validateFields(r.Name, r.Position, r.Description)
}

func validateFields(name string, pos *Position, description string) error {
	if strings.TrimSpace(name) == "" {
		return NewValidationError("name", "anchor must have a name")
	}
	if pos == nil || !pos.Finite() {
		return NewValidationError("position", "anchor position must have finite x, y and z numbers")
	}
	if strings.TrimSpace(description) == "" {
		return NewValidationError("description", "anchor must have a description")
	}
	return nil
}
