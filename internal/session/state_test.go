package session

import (
	"sync"
	"testing"
	"time"

	"github.com/ghalamif/AegisSense/internal/domain"
)

func TestNewStartsPausedWithPlaceholderMessage(t *testing.T) {
	s := New(true)
	if !s.Paused() {
		t.Fatalf("expected acquisition to start paused")
	}
	snap := s.Snapshot()
	if snap.LastMessage != "NA" {
		t.Fatalf("expected initial message NA, got %q", snap.LastMessage)
	}
	if snap.HasRecord {
		t.Fatalf("expected no record yet")
	}
	if snap.AcquisitionLabel() != LabelPaused {
		t.Fatalf("expected Paused label, got %s", snap.AcquisitionLabel())
	}
}

func TestToggleRoundTrip(t *testing.T) {
	s := New(true)

	if s.Toggle() {
		t.Fatalf("first toggle should resume acquisition")
	}
	if !s.Toggle() {
		t.Fatalf("second toggle should pause acquisition")
	}
	s.Toggle()
	s.Toggle()
	if !s.Paused() {
		t.Fatalf("toggle pairs should restore the original value")
	}
}

func TestObserveComputesDelta(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := base
	s := New(false, WithClock(func() time.Time { return now }))

	now = base.Add(3 * time.Second)
	rec := domain.Record{}.With(domain.FieldBattery, domain.Float(50))
	if d := s.Observe("Battery:50%", rec); d != 3*time.Second {
		t.Fatalf("expected delta since start 3s, got %s", d)
	}

	now = now.Add(1500 * time.Millisecond)
	if d := s.Observe("Battery:49%", rec); d != 1500*time.Millisecond {
		t.Fatalf("expected delta 1.5s, got %s", d)
	}

	snap := s.Snapshot()
	if snap.LastMessage != "Battery:49%" || snap.Messages != 2 || !snap.LastMessageAt.Equal(now) {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.LastRecord.Get(domain.FieldBattery).Num != 50 {
		t.Fatalf("expected last record to be stored")
	}
}

func TestSetLinkVisibleInSnapshot(t *testing.T) {
	s := New(true)
	s.SetLink("streaming", "AA:BB:CC:DD:EE:FF", "abc")
	snap := s.Snapshot()
	if snap.LinkState != "streaming" || snap.Address != "AA:BB:CC:DD:EE:FF" || snap.SessionID != "abc" {
		t.Fatalf("unexpected link fields: %+v", snap)
	}
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	s := New(false)
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			s.Observe("msg", domain.Record{})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			s.Toggle()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			_ = s.Snapshot()
		}
	}()
	wg.Wait()

	if got := s.Snapshot().Messages; got != 500 {
		t.Fatalf("expected 500 messages, got %d", got)
	}
	if s.Paused() {
		t.Fatalf("an even number of toggles should leave acquisition running")
	}
}
