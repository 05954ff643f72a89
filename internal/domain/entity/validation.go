package entity

import "fmt"

// maxAliasLength matches the storage column width for class identifiers
// and addresses.
const maxAliasLength = 250

// ValidateAlias validates a registry alias (message type or messenger).
// Returns a ValidationError if the alias is empty or exceeds the storage width.
func ValidateAlias(field, alias string) error {
	if alias == "" {
		return &ValidationError{Field: field, Message: "alias is required"}
	}

	if len(alias) > maxAliasLength {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("alias must not exceed %d characters", maxAliasLength),
		}
	}

	return nil
}

// ValidateAddress validates a recipient delivery address.
func ValidateAddress(address string) error {
	if address == "" {
		return &ValidationError{Field: "address", Message: "address is required"}
	}

	if len(address) > maxAliasLength {
		return &ValidationError{
			Field:   "address",
			Message: fmt.Sprintf("address must not exceed %d characters", maxAliasLength),
		}
	}

	return nil
}

// ValidatePriority rejects negative priorities; zero is the default tier.
func ValidatePriority(priority int) error {
	if priority < 0 {
		return &ValidationError{Field: "priority", Message: "priority must not be negative"}
	}

	return nil
}
