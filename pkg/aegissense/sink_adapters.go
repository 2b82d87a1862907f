package aegissense

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ghalamif/AegisSense/internal/ports"
)

// ErrChannelSinkClosed is returned when a channel sink is written to after being closed.
var ErrChannelSinkClosed = errors.New("aegissense: channel sink closed")

// RecordHandler receives every record that reaches a callback sink.
type RecordHandler func(Record) error

// CallbackSink adapts a RecordHandler into both Sink and BatchSink so callers
// can plug arbitrary functions without defining structs.
type CallbackSink struct {
	name string
	fn   RecordHandler
}

func NewCallbackSink(name string, fn RecordHandler) *CallbackSink {
	if name == "" {
		name = "callback"
	}
	return &CallbackSink{name: name, fn: fn}
}

func (s *CallbackSink) Append(_ context.Context, rec Record) error {
	if s.fn == nil {
		return fmt.Errorf("callback sink %q: nil handler", s.name)
	}
	return s.fn(rec)
}

// WriteBatch hands records to the handler in order and stops at the first error.
func (s *CallbackSink) WriteBatch(ctx context.Context, recs []Record) error {
	for _, rec := range recs {
		if err := s.Append(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

func (s *CallbackSink) Name() string { return s.name }
func (s *CallbackSink) Close() error { return nil }

// NewChannelSink exposes records via a channel; it returns the sink, the
// read-only channel, and a close function that the caller should invoke
// during shutdown.
func NewChannelSink(name string, buffer int) (Sink, <-chan Record, func()) {
	if name == "" {
		name = "channel"
	}
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan Record, buffer)
	s := &channelSink{
		name:   name,
		ch:     ch,
		closed: make(chan struct{}),
	}
	return s, ch, func() { s.close() }
}

type channelSink struct {
	name   string
	ch     chan Record
	closed chan struct{}
	once   sync.Once
	mu     sync.RWMutex
}

func (s *channelSink) Append(ctx context.Context, rec Record) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	default:
	}

	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	case <-ctx.Done():
		return ctx.Err()
	case s.ch <- rec:
		return nil
	}
}

func (s *channelSink) Name() string { return s.name }

func (s *channelSink) Close() error {
	s.close()
	return nil
}

// close unblocks pending Appends before closing the channel so no send can
// race with it.
func (s *channelSink) close() {
	s.once.Do(func() {
		close(s.closed)
		s.mu.Lock()
		close(s.ch)
		s.mu.Unlock()
	})
}

var (
	_ ports.Sink      = (*CallbackSink)(nil)
	_ ports.BatchSink = (*CallbackSink)(nil)
	_ ports.Sink      = (*channelSink)(nil)
)
