package redstone

import "errors"

var (
	// ErrFeedIDTooLong is returned when a feed id does not fit the 32-byte on-chain field.
	ErrFeedIDTooLong = errors.New("feed id exceeds 32 bytes")

	// ErrInvalidAccountLength is returned when account data matches no known layout size.
	ErrInvalidAccountLength = errors.New("invalid price account data length")

	// ErrAddressDerivation is returned when no bump seed yields a valid program address.
	ErrAddressDerivation = errors.New("price account derivation failed")
)
