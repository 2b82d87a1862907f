// Package status is the operator surface: it reports the live session
// snapshot over HTTP and lets an operator pause or resume acquisition.
package status

import (
	"time"

	"github.com/ghalamif/AegisSense/internal/domain"
	"github.com/ghalamif/AegisSense/internal/session"
)

// Status is the JSON document served at /status.
type Status struct {
	Acquisition   string    `json:"acquisition"`
	Paused        bool      `json:"paused"`
	LastMessage   string    `json:"last_message"`
	LastMessageAt time.Time `json:"last_message_at"`
	DeltaSeconds  float64   `json:"delta_seconds"`
	Messages      uint64    `json:"messages"`
	Header        []string  `json:"header"`
	Row           []string  `json:"row,omitempty"`
	LinkState     string    `json:"link_state"`
	Address       string    `json:"address"`
	SessionID     string    `json:"session_id,omitempty"`
}

// FromSnapshot converts a session snapshot.
func FromSnapshot(s session.Snapshot) Status {
	st := Status{
		Acquisition:   s.AcquisitionLabel(),
		Paused:        s.Paused,
		LastMessage:   s.LastMessage,
		LastMessageAt: s.LastMessageAt,
		DeltaSeconds:  s.Delta.Seconds(),
		Messages:      s.Messages,
		Header:        domain.Header(),
		LinkState:     s.LinkState,
		Address:       s.Address,
		SessionID:     s.SessionID,
	}
	if s.HasRecord {
		st.Row = s.LastRecord.Row()
	}
	return st
}
