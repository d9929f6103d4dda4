package notify

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chanSink struct {
	failures int32
	events   chan Event
}

func newChanSink(failures int) *chanSink {
	return &chanSink{failures: int32(failures), events: make(chan Event, 8)}
}

func (s *chanSink) Deliver(_ context.Context, ev Event) error {
	if atomic.AddInt32(&s.failures, -1) >= 0 {
		return errors.New("smtp temporarily unavailable")
	}
	s.events <- ev
	return nil
}

func waitEvent(t *testing.T, ch chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for notification delivery")
		return Event{}
	}
}

func TestEmitterDelivers(t *testing.T) {
	sink := newChanSink(0)
	e := NewEmitter(sink)

	e.Notify(context.Background(), "dispute.created", "co_eeff0011",
		map[string]string{"ticketId": "dsp_1"})

	ev := waitEvent(t, sink.events)
	assert.Equal(t, "dispute.created", ev.Type)
	assert.Equal(t, "co_eeff0011", ev.RecipientID)
	assert.Equal(t, "dsp_1", ev.Metadata["ticketId"])
	assert.False(t, ev.OccurredAt.IsZero())
}

func TestEmitterRetriesTransientFailures(t *testing.T) {
	sink := newChanSink(2) // first two attempts fail, third succeeds
	e := NewEmitter(sink)

	e.Notify(context.Background(), "dispute.resolved", "cl_aabbccdd", nil)

	ev := waitEvent(t, sink.events)
	assert.Equal(t, "dispute.resolved", ev.Type)
}

func TestEmitterNeverBlocksCaller(t *testing.T) {
	sink := newChanSink(100) // always fails; caller must not notice
	e := NewEmitter(sink)

	done := make(chan struct{})
	go func() {
		e.Notify(context.Background(), "dispute.escalated", "co_eeff0011", nil)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked the caller")
	}
}

func TestNilEmitterIsSafe(t *testing.T) {
	var e *Emitter
	require.NotPanics(t, func() {
		e.Notify(context.Background(), "dispute.created", "x", nil)
	})
}
