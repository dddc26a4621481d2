package mailstore

import (
	"fmt"

	"github.com/rbaliyan/mailstore/store"
)

// Limits holds the input limits enforced by Save.
type Limits struct {
	MaxMessageSize     int64
	MaxAttachmentSize  int64
	MaxAttachmentCount int
}

// DefaultLimits returns the default input limits.
func DefaultLimits() Limits {
	return Limits{
		MaxMessageSize:     DefaultMaxMessageSize,
		MaxAttachmentSize:  DefaultMaxAttachmentSize,
		MaxAttachmentCount: DefaultMaxAttachmentCount,
	}
}

// ValidateInput checks in against the default limits.
func ValidateInput(in *MessageInput) error {
	return ValidateInputWithLimits(in, DefaultLimits())
}

// ValidateInputWithLimits checks the locator, the body start offset and the
// size limits of in. It performs no I/O.
func ValidateInputWithLimits(in *MessageInput, limits Limits) error {
	if in == nil {
		return &ValidationError{Field: "input", Message: "nil message input"}
	}
	if err := in.Locator.Validate(); err != nil {
		return &ValidationError{Field: "locator", Message: err.Error()}
	}

	size := int64(len(in.Content))
	if limits.MaxMessageSize > 0 && size > limits.MaxMessageSize {
		return &ValidationError{
			Field:   "content",
			Message: fmt.Sprintf("size %d exceeds max %d bytes", size, limits.MaxMessageSize),
			Err:     ErrMessageTooLarge,
		}
	}
	if in.BodyStart < 0 || in.BodyStart > size {
		return &ValidationError{
			Field:   "body_start",
			Message: fmt.Sprintf("offset %d outside [0, %d]", in.BodyStart, size),
		}
	}

	if limits.MaxAttachmentCount > 0 && len(in.Attachments) > limits.MaxAttachmentCount {
		return &ValidationError{
			Field:   "attachments",
			Message: fmt.Sprintf("count %d exceeds max %d", len(in.Attachments), limits.MaxAttachmentCount),
			Err:     ErrTooManyAttachments,
		}
	}
	for i, a := range in.Attachments {
		if err := validateAttachment(a, limits); err != nil {
			err.Field = fmt.Sprintf("attachments[%d]", i)
			return err
		}
	}
	return nil
}

func validateAttachment(a store.Attachment, limits Limits) *ValidationError {
	if a.MediaType == "" {
		return &ValidationError{Message: "empty media type"}
	}
	if limits.MaxAttachmentSize > 0 && int64(len(a.Data)) > limits.MaxAttachmentSize {
		return &ValidationError{
			Message: fmt.Sprintf("size %d exceeds max %d bytes", len(a.Data), limits.MaxAttachmentSize),
			Err:     ErrAttachmentTooLarge,
		}
	}
	return nil
}
