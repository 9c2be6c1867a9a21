package logging

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestBroadcasterDelivery(t *testing.T) {
	b := NewBroadcaster(8)
	b.Start()
	defer b.Stop()

	ch, cancel := b.Subscribe()
	defer cancel()

	if _, err := b.Write([]byte("line one\nline two\n")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	for _, want := range []string{"line one", "line two"} {
		select {
		case got := <-ch:
			if got != want {
				t.Fatalf("expected %q, got %q", want, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func TestBroadcasterPartialLines(t *testing.T) {
	b := NewBroadcaster(8)
	b.Start()
	defer b.Stop()

	ch, cancel := b.Subscribe()
	defer cancel()

	b.Write([]byte(`{"level":"info",`))
	select {
	case got := <-ch:
		t.Fatalf("unexpected delivery of partial line: %q", got)
	case <-time.After(50 * time.Millisecond):
	}

	b.Write([]byte("\"message\":\"done\"}\n"))
	select {
	case got := <-ch:
		if got != `{"level":"info","message":"done"}` {
			t.Fatalf("unexpected line: %q", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for completed line")
	}
}

func TestBroadcasterDropsWhenStopped(t *testing.T) {
	b := NewBroadcaster(8)
	ch, cancel := b.Subscribe()
	defer cancel()

	// Not started yet: lines are dropped
	b.Write([]byte("dropped\n"))
	select {
	case got, ok := <-ch:
		if ok {
			t.Fatalf("unexpected delivery before Start: %q", got)
		}
	case <-time.After(50 * time.Millisecond):
	}

	b.Start()
	b.Stop()
	if b.SubscriberCount() != 0 {
		t.Fatalf("expected subscribers closed on Stop")
	}

	// Stop closed the channel
	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel after Stop")
	}
}

func TestBroadcasterUnsubscribe(t *testing.T) {
	b := NewBroadcaster(8)
	b.Start()
	defer b.Stop()

	_, cancel := b.Subscribe()
	if b.SubscriberCount() != 1 {
		t.Fatalf("expected one subscriber")
	}
	cancel()
	cancel() // idempotent
	if b.SubscriberCount() != 0 {
		t.Fatalf("expected zero subscribers after cancel")
	}
}

func TestLoggerWithBroadcaster(t *testing.T) {
	var buf bytes.Buffer
	b := NewBroadcaster(8)
	b.Start()
	defer b.Stop()

	logger := NewLogger(WithOutput(&buf), WithBroadcaster(b))
	ch, cancel := b.Subscribe()
	defer cancel()

	logger.Info("broadcast me")

	if !strings.Contains(buf.String(), "broadcast me") {
		t.Fatalf("primary output missing log line")
	}
	select {
	case line := <-ch:
		if !strings.Contains(line, "broadcast me") {
			t.Fatalf("subscriber got wrong line: %q", line)
		}
	case <-time.After(time.Second):
		t.Fatalf("subscriber did not receive log line")
	}
}
