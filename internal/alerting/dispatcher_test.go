package alerting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestDeliverSuccess(t *testing.T) {
	outbound := make(chan SendRequest, 1)
	dispatcher := NewChannelDispatcher(outbound, time.Second, zerolog.Nop())

	go func() {
		request := <-outbound
		if request.Event.ChatID != 42 {
			t.Errorf("unexpected chat id %d", request.Event.ChatID)
		}
		request.Result <- nil
	}()

	if err := dispatcher.Deliver(context.Background(), Event{ChatID: 42, Body: "hi"}); err != nil {
		t.Fatalf("delivery should succeed: %v", err)
	}
}

func TestDeliverPropagatesTransportError(t *testing.T) {
	outbound := make(chan SendRequest, 1)
	dispatcher := NewChannelDispatcher(outbound, time.Second, zerolog.Nop())

	sendErr := errors.New("chat not found")
	go func() {
		request := <-outbound
		request.Result <- sendErr
	}()

	if err := dispatcher.Deliver(context.Background(), Event{ChatID: 1}); !errors.Is(err, sendErr) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestDeliverTimesOutWhenTransportStalls(t *testing.T) {
	// Unbuffered and never consumed: the hand-off itself must time out.
	outbound := make(chan SendRequest)
	dispatcher := NewChannelDispatcher(outbound, 50*time.Millisecond, zerolog.Nop())

	start := time.Now()
	err := dispatcher.Deliver(context.Background(), Event{ChatID: 1})
	elapsed := time.Since(start)

	if !errors.Is(err, ErrDeliverTimeout) {
		t.Fatalf("expected ErrDeliverTimeout, got %v", err)
	}
	if elapsed > time.Second {
		t.Fatalf("delivery blocked far beyond the bounded wait: %s", elapsed)
	}
}

func TestDeliverTimesOutWhenResultNeverComes(t *testing.T) {
	outbound := make(chan SendRequest, 1)
	dispatcher := NewChannelDispatcher(outbound, 50*time.Millisecond, zerolog.Nop())

	// Accept the request but never resolve it.
	if err := dispatcher.Deliver(context.Background(), Event{ChatID: 1}); !errors.Is(err, ErrDeliverTimeout) {
		t.Fatalf("expected ErrDeliverTimeout, got %v", err)
	}
}

func TestDeliverHonoursContextCancellation(t *testing.T) {
	outbound := make(chan SendRequest)
	dispatcher := NewChannelDispatcher(outbound, time.Minute, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := dispatcher.Deliver(ctx, Event{ChatID: 1}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
