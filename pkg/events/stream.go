package events

import (
	"log/slog"
	"sync"
)

// streamBuffer is generous relative to what one investigation produces;
// overflow means the consumer stalled for a long time, and non-terminal
// events are shed rather than blocking producers.
const streamBuffer = 1024

// Stream is the per-investigation event serializer: many producers, one
// consumer. Publishing after a terminal event is a silent no-op, which
// keeps the terminal-event contract intact no matter how producer
// goroutines race during shutdown.
type Stream struct {
	mu         sync.Mutex
	ch         chan Event
	seq        int64
	terminated bool
	closed     bool
	dropped    int
}

// NewStream creates an empty stream.
func NewStream() *Stream {
	return &Stream{ch: make(chan Event, streamBuffer)}
}

// Events is the consumer side. The channel closes after the terminal
// event (or after Abandon).
func (s *Stream) Events() <-chan Event {
	return s.ch
}

// Publish enqueues one event, assigning its sequence number. It reports
// whether the event was accepted; events after the terminal one, and
// non-terminal events that would overflow a stalled consumer, are
// dropped.
func (s *Stream) Publish(t Type, payload any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.terminated || s.closed {
		return false
	}
	s.seq++
	ev := Event{Seq: s.seq, Type: t, Payload: payload}

	select {
	case s.ch <- ev:
	default:
		if !t.Terminal() {
			s.dropped++
			slog.Warn("Event stream full, dropping event", "type", t, "dropped_total", s.dropped)
			s.seq--
			return false
		}
		// A terminal event must not vanish; shed one queued event to fit.
		select {
		case <-s.ch:
		default:
		}
		s.ch <- ev
	}

	if t.Terminal() {
		s.terminated = true
		s.closed = true
		close(s.ch)
	}
	return true
}

// Abandon closes the stream without a terminal event. Used when the
// consumer is already gone and delivery is pointless.
func (s *Stream) Abandon() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.terminated = true
	close(s.ch)
}

// Terminated reports whether a terminal event was published (or the
// stream abandoned).
func (s *Stream) Terminated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminated
}
