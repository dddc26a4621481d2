package mailstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/rbaliyan/mailstore/store"
)

// Sentinel errors for the mailstore package.
// Use errors.Is() to check for these errors.
//
// Sentinels that have a store-level counterpart wrap it, so
// errors.Is(err, mailstore.ErrConsistency) and
// errors.Is(err, store.ErrConsistency) agree.
var (
	// ErrInvalidInput is returned for malformed Save or Retrieve arguments.
	// Wraps store.ErrInvalidArgument.
	ErrInvalidInput = fmt.Errorf("mailstore: %w", store.ErrInvalidArgument)

	// ErrConsistency is returned when a record references a blob that is
	// missing or corrupt.
	ErrConsistency = fmt.Errorf("mailstore: %w", store.ErrConsistency)

	// ErrSubstrateRequired is returned when no substrate is configured.
	ErrSubstrateRequired = errors.New("mailstore: substrate is required")

	// ErrNotConnected is returned when operations are attempted before Connect().
	ErrNotConnected = fmt.Errorf("mailstore: %w", store.ErrNotConnected)

	// ErrAlreadyConnected is returned when Connect() is called twice.
	ErrAlreadyConnected = fmt.Errorf("mailstore: %w", store.ErrAlreadyConnected)

	// ErrMessageTooLarge is returned when raw content exceeds the size limit.
	ErrMessageTooLarge = fmt.Errorf("%w: message too large", ErrInvalidInput)

	// ErrTooManyAttachments is returned when attachment count exceeds the limit.
	ErrTooManyAttachments = fmt.Errorf("%w: too many attachments", ErrInvalidInput)

	// ErrAttachmentTooLarge is returned when an attachment exceeds the size limit.
	ErrAttachmentTooLarge = fmt.Errorf("%w: attachment too large", ErrInvalidInput)

	// ErrUnknownFetchType is returned for a FetchType outside the closed set.
	ErrUnknownFetchType = fmt.Errorf("%w: unknown fetch type", ErrInvalidInput)
)

// ItemError reports the failure of one locator inside a batch Retrieve.
// Other items of the same batch are unaffected.
type ItemError struct {
	Locator store.MessageLocator
	Err     error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("mailstore: retrieve %s: %v", e.Locator, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

// ValidationError provides details about an input validation failure.
type ValidationError struct {
	Field   string
	Message string
	Err     error // specific sentinel; ErrInvalidInput when nil
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("mailstore: validation failed for %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// EventPublishError is returned when the write succeeded but its event
// could not be published and WithEventErrorsFatal is set.
type EventPublishError struct {
	Event     string
	MessageID string
	Err       error
}

func (e *EventPublishError) Error() string {
	return fmt.Sprintf("mailstore: event %s publish failed for message %s: %v", e.Event, e.MessageID, e.Err)
}

func (e *EventPublishError) Unwrap() error {
	return e.Err
}

// IsEventPublishError checks if the error is an event publish error and returns details.
func IsEventPublishError(err error) (*EventPublishError, bool) {
	var epe *EventPublishError
	if errors.As(err, &epe) {
		return epe, true
	}
	return nil, false
}

// IsRetryableError reports whether retrying the failed call may succeed.
// Invalid input, absent data and consistency faults are permanent; an
// event publish failure is not worth retrying since the write is durable.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}
	if _, ok := IsEventPublishError(err); ok {
		return false
	}

	permanent := []error{
		store.ErrInvalidArgument,
		store.ErrInvalidID,
		store.ErrNotFound,
		store.ErrConsistency,
		store.ErrAlreadyConnected,
		ErrSubstrateRequired,
	}
	for _, p := range permanent {
		if errors.Is(err, p) {
			return false
		}
	}

	var pe *PluginError
	if errors.As(err, &pe) {
		return false
	}

	// Unknown errors are most likely transient substrate failures.
	return true
}
