package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"punchd/internal/eventbus"
	"punchd/internal/punch"
	logx "punchd/pkg/logx"
)

type captureSink struct {
	mu   sync.Mutex
	got  []punch.Outcome
	err  error
	name string
}

func (s *captureSink) Name() string {
	if s.name != "" {
		return s.name
	}
	return "capture"
}

func (s *captureSink) Send(ctx context.Context, o punch.Outcome) error {
	s.mu.Lock()
	s.got = append(s.got, o)
	s.mu.Unlock()
	return s.err
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestPumpDeliversBusOutcomes(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	sink := &captureSink{}
	svc := New(Config{Enabled: true, RatePerSec: 100}, []Sink{sink}, logx.Nop(), bus, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop(context.Background())

	bus.Publish(eventbus.Event{
		Type: eventbus.TypePunchOutcome,
		Data: punch.Outcome{ID: "evt-1", Status: punch.StatusSuccess},
	})
	// Non-outcome events must be ignored by the pump.
	bus.Publish(eventbus.Event{Type: eventbus.TypeDayArmed, Data: map[string]any{}})

	waitFor(t, 5*time.Second, func() bool { return sink.count() == 1 })
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.got[0].ID != "evt-1" {
		t.Fatalf("delivered id = %q, want evt-1", sink.got[0].ID)
	}
}

func TestNotifyNeverBlocksWhenFull(t *testing.T) {
	t.Parallel()
	// No Start: the queue does not exist, Notify must still return.
	svc := New(Config{Enabled: true}, []Sink{&captureSink{}}, logx.Nop(), nil, nil)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			svc.Notify(punch.Outcome{ID: "x"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Notify blocked")
	}
}

func TestDeliveryFailurePublishesEvent(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	sink := &captureSink{err: errors.New("destination down")}
	svc := New(Config{Enabled: true, RatePerSec: 100}, []Sink{sink}, logx.Nop(), bus, nil)

	events, unsub := bus.Subscribe(16)
	defer unsub()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop(context.Background())

	svc.Notify(punch.Outcome{ID: "evt-9", Status: punch.StatusError})

	deadline := time.After(5 * time.Second)
	for {
		select {
		case e := <-events:
			if e.Type != eventbus.TypeNotifyFailed {
				continue
			}
			data, ok := e.Data.(map[string]string)
			if !ok {
				t.Fatalf("failure event carries %T", e.Data)
			}
			if data["id"] != "evt-9" || data["sink"] != "capture" {
				t.Fatalf("unexpected failure data: %v", data)
			}
			return
		case <-deadline:
			t.Fatal("timed out waiting for delivery failure event")
		}
	}
}

func TestMultipleSinksAllReceive(t *testing.T) {
	t.Parallel()
	a := &captureSink{name: "a"}
	b := &captureSink{name: "b", err: errors.New("b down")}
	c := &captureSink{name: "c"}
	svc := New(Config{Enabled: true, RatePerSec: 100}, []Sink{a, b, c}, logx.Nop(), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop(context.Background())

	svc.Notify(punch.Outcome{ID: "evt-5"})

	// One failing sink must not stop delivery to the others.
	waitFor(t, 5*time.Second, func() bool {
		return a.count() == 1 && b.count() == 1 && c.count() == 1
	})
}

func TestDisabledServiceIsInert(t *testing.T) {
	t.Parallel()
	sink := &captureSink{}
	svc := New(Config{Enabled: false}, []Sink{sink}, logx.Nop(), nil, nil)
	if svc.Enabled() {
		t.Fatal("disabled config reports enabled")
	}
	svc.Start(context.Background())
	svc.Notify(punch.Outcome{ID: "evt-1"})
	svc.Stop(context.Background())
	if sink.count() != 0 {
		t.Fatalf("disabled service delivered %d outcomes", sink.count())
	}
}

func TestBuildSinksWebhookOnly(t *testing.T) {
	t.Parallel()
	sinks := BuildSinks(Config{
		Webhook: &WebhookConfig{URL: "http://127.0.0.1:9/hook"},
	}, logx.Nop())
	if len(sinks) != 1 {
		t.Fatalf("sinks = %d, want 1", len(sinks))
	}
	if sinks[0].Name() != "webhook" {
		t.Fatalf("sink name = %q, want webhook", sinks[0].Name())
	}
}
