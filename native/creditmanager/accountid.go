package creditmanager

import (
	errorsmod "cosmossdk.io/errors"
)

const (
	minTokenIDLength = 4
	maxTokenIDLength = 15
)

// ValidateTokenID checks a user-supplied account token id: 4 to 15
// characters, alphanumeric plus underscore, at least one letter. Purely
// numeric ids are reserved for the auto-assigned sequence and are rejected
// by the letter requirement.
func ValidateTokenID(id string) error {
	if len(id) < minTokenIDLength || len(id) > maxTokenIDLength {
		return errorsmod.Wrapf(ErrInvalidTokenId,
			"%q must be between %d and %d characters", id, minTokenIDLength, maxTokenIDLength)
	}
	hasLetter := false
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			hasLetter = true
		case r >= '0' && r <= '9', r == '_':
		default:
			return errorsmod.Wrapf(ErrInvalidTokenId, "%q contains invalid character %q", id, r)
		}
	}
	if !hasLetter {
		return errorsmod.Wrapf(ErrInvalidTokenId, "%q must contain at least one letter", id)
	}
	return nil
}
