package events

import (
	"context"
	"errors"
	"testing"
)

func TestPublishRunsAllHandlers(t *testing.T) {
	d := NewInMemoryDispatcher()
	var calls []string
	d.Subscribe(EventStaffLocked, func(_ context.Context, e Event) error {
		calls = append(calls, "first:"+e.AccountID)
		return errors.New("webhook down")
	})
	d.Subscribe(EventStaffLocked, func(_ context.Context, e Event) error {
		calls = append(calls, "second:"+e.AccountID)
		return nil
	})
	d.Subscribe(EventPINRotated, func(context.Context, Event) error {
		t.Error("handler for another type must not run")
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventStaffLocked, AccountID: "s1"})
	if err == nil {
		t.Fatal("expected joined handler error")
	}
	if len(calls) != 2 || calls[0] != "first:s1" || calls[1] != "second:s1" {
		t.Errorf("calls = %v", calls)
	}
}

func TestPublishWithoutSubscribers(t *testing.T) {
	if err := NewInMemoryDispatcher().Publish(context.Background(), Event{Type: EventPINReset}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
