package events

import (
	"testing"
	"time"
)

func TestBus_DeliversInOrder(t *testing.T) {
	b := NewBus()
	ch, cancel := b.Subscribe("s1")
	defer cancel()

	b.Publish("s1", Event{Type: TypeStatus, Payload: map[string]any{"status": "connected"}})
	b.Publish("s1", Event{Type: TypeTranscript, Payload: map[string]any{"text": "one"}})
	b.Publish("s1", Event{Type: TypeCompleted, Payload: map[string]any{"outcome": "accepted"}})

	want := []Type{TypeStatus, TypeTranscript, TypeCompleted}
	for i, typ := range want {
		select {
		case ev := <-ch:
			if ev.Type != typ {
				t.Fatalf("event %d: got %s want %s", i, ev.Type, typ)
			}
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for event %d", i)
		}
	}
}

func TestBus_IsolatesSessions(t *testing.T) {
	b := NewBus()
	ch1, cancel1 := b.Subscribe("s1")
	defer cancel1()
	ch2, cancel2 := b.Subscribe("s2")
	defer cancel2()

	b.Publish("s1", Event{Type: TypeStatus})

	select {
	case <-ch1:
	case <-time.After(time.Second):
		t.Fatalf("s1 subscriber did not receive event")
	}
	select {
	case ev := <-ch2:
		t.Fatalf("s2 subscriber received s1 event: %v", ev)
	default:
	}
}

func TestBus_PublishWithoutSubscribersIsNoop(t *testing.T) {
	b := NewBus()
	// Must not panic or block.
	b.Publish("nobody", Event{Type: TypeTranscript})
}

func TestBus_CancelClosesChannelOnce(t *testing.T) {
	b := NewBus()
	ch, cancel := b.Subscribe("s1")
	cancel()
	cancel() // second call must be safe
	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel after cancel")
	}
	if n := b.Subscribers("s1"); n != 0 {
		t.Fatalf("expected 0 subscribers, got %d", n)
	}
	// Publishing after cancel must not panic.
	b.Publish("s1", Event{Type: TypeStatus})
}

func TestBus_SlowSubscriberDoesNotBlockProducer(t *testing.T) {
	b := NewBus()
	_, cancel := b.Subscribe("s1")
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			b.Publish("s1", Event{Type: TypeTranscript})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("publish blocked on a full subscriber")
	}
}
