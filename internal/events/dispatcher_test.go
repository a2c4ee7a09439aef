package events

import (
	"context"
	"errors"
	"testing"
)

func TestPublishInvokesSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher()

	var got []string
	d.Subscribe(EventCandidateJoined, func(_ context.Context, e Event) error {
		got = append(got, "first:"+e.ID)
		return nil
	})
	d.Subscribe(EventCandidateJoined, func(_ context.Context, e Event) error {
		got = append(got, "second:"+e.ID)
		return nil
	})
	d.Subscribe(EventCandidateLeft, func(_ context.Context, _ Event) error {
		t.Fatal("handler for a different event type was invoked")
		return nil
	})

	if err := d.Publish(context.Background(), Event{ID: "e1", Type: EventCandidateJoined}); err != nil {
		t.Fatalf("Publish returned %v", err)
	}
	if len(got) != 2 || got[0] != "first:e1" || got[1] != "second:e1" {
		t.Fatalf("handlers invoked = %v; want both in order", got)
	}
}

func TestPublishCollectsErrors(t *testing.T) {
	d := NewInMemoryDispatcher()

	errBoom := errors.New("boom")
	ran := false
	d.Subscribe(EventMessageReceived, func(_ context.Context, _ Event) error {
		return errBoom
	})
	d.Subscribe(EventMessageReceived, func(_ context.Context, _ Event) error {
		ran = true
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventMessageReceived})
	if !errors.Is(err, errBoom) {
		t.Fatalf("Publish error = %v; want wrapped boom", err)
	}
	if !ran {
		t.Fatal("a failing handler stopped the remaining handlers")
	}
}

func TestPublishRecoversPanics(t *testing.T) {
	d := NewInMemoryDispatcher()

	d.Subscribe(EventMemberLeft, func(_ context.Context, _ Event) error {
		panic("handler exploded")
	})
	ran := false
	d.Subscribe(EventMemberLeft, func(_ context.Context, _ Event) error {
		ran = true
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventMemberLeft})
	if err == nil {
		t.Fatal("Publish swallowed the panic entirely")
	}
	if !ran {
		t.Fatal("a panicking handler stopped the remaining handlers")
	}
}

func TestPublishNoSubscribers(t *testing.T) {
	d := NewInMemoryDispatcher()
	if err := d.Publish(context.Background(), Event{Type: EventBotConcluded}); err != nil {
		t.Fatalf("Publish with no subscribers returned %v", err)
	}
}
