package alerting

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// Event is a notification bound for one chat. It lives for a single
// delivery attempt; there is no retry queue.
type Event struct {
	ChatID  int64
	Subject string
	Body    string
}

// Dispatcher hands an event to the messaging transport and reports the
// outcome of the send attempt.
type Dispatcher interface {
	Deliver(ctx context.Context, event Event) error
}

// ErrDeliverTimeout indicates the transport loop did not accept or resolve
// the send within the bounded wait.
var ErrDeliverTimeout = errors.New("alerting: delivery timed out")

// SendRequest crosses from the caller's goroutine into the transport loop.
// The transport resolves the send and writes exactly one value to Result.
type SendRequest struct {
	Event  Event
	Result chan error
}

// ChannelDispatcher bridges into a transport loop over a channel. The wait
// is bounded so a stalled transport cannot stall the monitoring cycle.
type ChannelDispatcher struct {
	outbound chan<- SendRequest
	timeout  time.Duration
	logger   zerolog.Logger
}

// NewChannelDispatcher wires a dispatcher onto the transport's outbound channel.
func NewChannelDispatcher(outbound chan<- SendRequest, timeout time.Duration, logger zerolog.Logger) *ChannelDispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &ChannelDispatcher{
		outbound: outbound,
		timeout:  timeout,
		logger:   logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Deliver enqueues the event and waits for the transport's verdict, at most
// for the configured timeout. On timeout the event is dropped.
func (d *ChannelDispatcher) Deliver(ctx context.Context, event Event) error {
	request := SendRequest{
		Event:  event,
		Result: make(chan error, 1),
	}

	deadline := time.NewTimer(d.timeout)
	defer deadline.Stop()

	select {
	case d.outbound <- request:
	case <-deadline.C:
		d.logger.Warn().Int64("chat_id", event.ChatID).Msg("transport did not accept event in time")
		return ErrDeliverTimeout
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-request.Result:
		return err
	case <-deadline.C:
		d.logger.Warn().Int64("chat_id", event.ChatID).Msg("send attempt exceeded bounded wait")
		return ErrDeliverTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ Dispatcher = (*ChannelDispatcher)(nil)
