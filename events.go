package mailstore

import (
	"context"
	"fmt"
	"time"

	"github.com/rbaliyan/event/v3"

	"github.com/rbaliyan/mailstore/store"
)

// Event names for engine events. Each engine prefixes them with its bus name.
const (
	EventNameMessageStored  = "mailstore.message.stored"
	EventNameMessageDeleted = "mailstore.message.deleted"
)

// MessageStoredEvent is published after a message record becomes visible.
type MessageStoredEvent struct {
	Locator         store.MessageLocator `json:"locator"`
	Size            int64                `json:"size"`
	AttachmentCount int                  `json:"attachment_count"`
	StoredAt        time.Time            `json:"stored_at"`
}

// MessageDeletedEvent is published after a message record is removed.
type MessageDeletedEvent struct {
	Locator   store.MessageLocator `json:"locator"`
	DeletedAt time.Time            `json:"deleted_at"`
}

// EngineEvents provides access to per-engine event instances.
//
//	eng.Events().MessageStored.Subscribe(ctx, handler)
type EngineEvents struct {
	MessageStored  event.Event[MessageStoredEvent]
	MessageDeleted event.Event[MessageDeletedEvent]
}

func newEngineEvents(namePrefix string) *EngineEvents {
	return &EngineEvents{
		MessageStored:  event.New[MessageStoredEvent](namePrefix + "." + EventNameMessageStored),
		MessageDeleted: event.New[MessageDeletedEvent](namePrefix + "." + EventNameMessageDeleted),
	}
}

func registerEngineEvents(ctx context.Context, bus *event.Bus, events *EngineEvents) error {
	if err := event.Register(ctx, bus, events.MessageStored); err != nil {
		return fmt.Errorf("register MessageStored: %w", err)
	}
	if err := event.Register(ctx, bus, events.MessageDeleted); err != nil {
		return fmt.Errorf("register MessageDeleted: %w", err)
	}
	return nil
}

// publish sends payload on ev. A failure is returned as *EventPublishError
// when events are fatal and reported to the failure handler otherwise.
func publish[T any](ctx context.Context, e *Engine, name string, ev event.Event[T], messageID string, payload T) error {
	if err := ev.Publish(ctx, payload); err != nil {
		if e.opts.eventErrorsFatal {
			return &EventPublishError{Event: name, MessageID: messageID, Err: err}
		}
		e.opts.safeEventPublishFailure(name, err)
	}
	return nil
}
