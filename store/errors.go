package store

import "errors"

// Sentinel errors for the store package.
var (
	// ErrNotFound is returned when a record, blob or index entry cannot be found.
	ErrNotFound = errors.New("store: not found")

	// ErrInvalidArgument is returned when a required argument is missing or
	// out of range.
	ErrInvalidArgument = errors.New("store: invalid argument")

	// ErrInvalidID is returned when an invalid ID is provided.
	ErrInvalidID = errors.New("store: invalid id")

	// ErrConsistency is returned when stored metadata references content
	// that cannot be read back. It signals substrate data loss or
	// corruption, never an ordinary miss.
	ErrConsistency = errors.New("store: consistency fault")

	// ErrNotConnected is returned when operations are attempted before Connect().
	ErrNotConnected = errors.New("store: not connected")

	// ErrAlreadyConnected is returned when Connect() is called twice.
	ErrAlreadyConnected = errors.New("store: already connected")
)

// Error checking helpers.

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

func IsInvalidID(err error) bool {
	return errors.Is(err, ErrInvalidID)
}

func IsConsistency(err error) bool {
	return errors.Is(err, ErrConsistency)
}

func IsNotConnected(err error) bool {
	return errors.Is(err, ErrNotConnected)
}
