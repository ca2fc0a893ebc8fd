package eventbus

import (
	"testing"
	"time"
)

func TestPublishFanout(t *testing.T) {
	t.Parallel()
	b := New()
	ch1, unsub1 := b.Subscribe(4)
	defer unsub1()
	ch2, unsub2 := b.Subscribe(4)
	defer unsub2()

	b.Publish(Event{Type: TypePunchOutcome, Data: "payload"})

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case e := <-ch:
			if e.Type != TypePunchOutcome {
				t.Fatalf("subscriber %d got type %q", i, e.Type)
			}
			if e.Time.IsZero() {
				t.Fatalf("subscriber %d got zero event time", i)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d received nothing", i)
		}
	}
}

func TestPublishNeverBlocksOnFullSubscriber(t *testing.T) {
	t.Parallel()
	b := New()
	_, unsub := b.Subscribe(1)
	defer unsub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish(Event{Type: TypeDayArmed})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
}

func TestUnsubscribeStopsDeliveryAndCloses(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(4)
	unsub()
	unsub() // idempotent

	// Publishing after an unsubscribe must not panic.
	b.Publish(Event{Type: TypeNotifyFailed})

	if _, ok := <-ch; ok {
		t.Fatal("channel not closed after unsubscribe")
	}
}
