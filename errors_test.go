package mailstore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rbaliyan/mailstore/store"
)

func TestSentinelsWrapStoreErrors(t *testing.T) {
	tests := []struct {
		err  error
		base error
	}{
		{ErrInvalidInput, store.ErrInvalidArgument},
		{ErrConsistency, store.ErrConsistency},
		{ErrNotConnected, store.ErrNotConnected},
		{ErrAlreadyConnected, store.ErrAlreadyConnected},
		{ErrNotFound, store.ErrNotFound},
		{ErrMessageTooLarge, ErrInvalidInput},
		{ErrTooManyAttachments, ErrInvalidInput},
		{ErrAttachmentTooLarge, ErrInvalidInput},
		{ErrUnknownFetchType, ErrInvalidInput},
	}
	for _, tt := range tests {
		if !errors.Is(tt.err, tt.base) {
			t.Errorf("%v does not wrap %v", tt.err, tt.base)
		}
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"cancelled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
		{"invalid input", &ValidationError{Field: "locator", Message: "empty"}, false},
		{"not found", fmt.Errorf("get: %w", store.ErrNotFound), false},
		{"consistency", &ItemError{Err: ErrConsistency}, false},
		{"substrate required", ErrSubstrateRequired, false},
		{"plugin", &PluginError{Plugin: "p", Op: "before_save", Err: errors.New("x")}, false},
		{"event publish", &EventPublishError{Event: "MessageStored", Err: errors.New("x")}, false},
		{"substrate failure", errors.New("connection reset"), true},
		{"not connected", ErrNotConnected, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryableError(tt.err); got != tt.want {
				t.Errorf("IsRetryableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsEventPublishError(t *testing.T) {
	inner := errors.New("broker down")
	err := fmt.Errorf("save: %w", &EventPublishError{Event: "MessageStored", MessageID: "m1", Err: inner})

	epe, ok := IsEventPublishError(err)
	if !ok {
		t.Fatal("expected event publish error")
	}
	if epe.MessageID != "m1" || !errors.Is(err, inner) {
		t.Errorf("unexpected details: %+v", epe)
	}
	if _, ok := IsEventPublishError(errors.New("other")); ok {
		t.Error("plain error detected as event publish error")
	}
}
