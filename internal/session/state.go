// Package session holds the live snapshot shared between the connection
// supervisor (writer of message, record and link fields) and the status
// surface (writer of the acquisition gate).
package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ghalamif/AegisSense/internal/domain"
)

// InitialMessage is reported until the first notification is recorded.
const InitialMessage = domain.NotAvailable

// Acquisition labels as shown to operators.
const (
	LabelRunning = "Running"
	LabelPaused  = "Paused"
)

// Snapshot is a point-in-time copy of State.
type Snapshot struct {
	LastMessage   string
	LastRecord    domain.Record
	HasRecord     bool
	LastMessageAt time.Time
	Delta         time.Duration
	Messages      uint64
	Paused        bool

	LinkState string
	Address   string
	SessionID string
}

// AcquisitionLabel returns "Paused" or "Running".
func (s Snapshot) AcquisitionLabel() string {
	if s.Paused {
		return LabelPaused
	}
	return LabelRunning
}

// State is safe for concurrent use. The paused gate is an atomic so every
// notification reads its latest value.
type State struct {
	paused atomic.Bool
	now    func() time.Time

	mu            sync.RWMutex
	lastMessage   string
	lastRecord    domain.Record
	hasRecord     bool
	lastMessageAt time.Time
	delta         time.Duration
	messages      uint64

	linkMu    sync.RWMutex
	linkState string
	address   string
	sessionID string
}

// Option configures a State.
type Option func(*State)

// WithClock overrides the clock used to time notifications.
func WithClock(now func() time.Time) Option {
	return func(s *State) {
		if now != nil {
			s.now = now
		}
	}
}

// New returns a State with acquisition paused or running per startPaused.
// The timing reference starts at construction, so the first delta measures
// the time since startup.
func New(startPaused bool, opts ...Option) *State {
	s := &State{now: time.Now, lastMessage: InitialMessage}
	for _, opt := range opts {
		opt(s)
	}
	s.lastMessageAt = s.now()
	s.paused.Store(startPaused)
	return s
}

func (s *State) Paused() bool { return s.paused.Load() }

func (s *State) SetPaused(p bool) { s.paused.Store(p) }

// Toggle flips the gate and returns the new paused value.
func (s *State) Toggle() bool {
	for {
		old := s.paused.Load()
		if s.paused.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// Observe records a processed notification and returns the elapsed time
// since the previous one.
func (s *State) Observe(message string, rec domain.Record) time.Duration {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastMessage = message
	s.lastRecord = rec
	s.hasRecord = true
	s.delta = now.Sub(s.lastMessageAt)
	s.lastMessageAt = now
	s.messages++
	return s.delta
}

// SetLink publishes the supervisor's current state and session.
func (s *State) SetLink(state, address, sessionID string) {
	s.linkMu.Lock()
	defer s.linkMu.Unlock()
	s.linkState = state
	s.address = address
	s.sessionID = sessionID
}

func (s *State) LastMessage() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastMessage
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	snap := Snapshot{
		LastMessage:   s.lastMessage,
		LastRecord:    s.lastRecord,
		HasRecord:     s.hasRecord,
		LastMessageAt: s.lastMessageAt,
		Delta:         s.delta,
		Messages:      s.messages,
	}
	s.mu.RUnlock()

	s.linkMu.RLock()
	snap.LinkState = s.linkState
	snap.Address = s.address
	snap.SessionID = s.sessionID
	s.linkMu.RUnlock()

	snap.Paused = s.Paused()
	return snap
}
