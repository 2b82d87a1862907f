package supervisor

import (
	"context"
	"errors"
	"testing"

	"github.com/ghalamif/AegisSense/internal/adapters/observability"
	"github.com/ghalamif/AegisSense/internal/decoder"
	"github.com/ghalamif/AegisSense/internal/domain"
	"github.com/ghalamif/AegisSense/internal/session"
)

func note(payload string) domain.Notification {
	return domain.Notification{Source: testSource, Data: []byte(payload)}
}

func TestRouterDiscardsWhilePaused(t *testing.T) {
	state := session.New(true)
	sink := &recordingSink{}
	obs := newMockObs()
	r := NewRouter(decoder.New(), state, sink, obs)

	before := state.Snapshot()
	for i := 0; i < 3; i++ {
		if err := r.Handle(context.Background(), note("Battery:50%")); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}
	after := state.Snapshot()

	if len(sink.records()) != 0 {
		t.Fatalf("no record may reach the sink while paused")
	}
	if after.LastMessage != before.LastMessage || after.Messages != 0 || !after.LastMessageAt.Equal(before.LastMessageAt) || after.HasRecord {
		t.Fatalf("state changed while paused: %+v", after)
	}
	if obs.counter(observability.MetricNotificationsPaused) != 3 {
		t.Fatalf("expected paused notifications to be counted")
	}

	state.Toggle()
	if err := r.Handle(context.Background(), note("  Battery:50%\n")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(sink.records()) != 1 || state.LastMessage() != "Battery:50%" {
		t.Fatalf("expected record after resume, state %+v", state.Snapshot())
	}
}

func TestRouterLogsInvalidTextAsHex(t *testing.T) {
	state := session.New(false)
	sink := &recordingSink{}
	obs := newMockObs()
	r := NewRouter(nil, state, sink, obs)

	err := r.Handle(context.Background(), domain.Notification{Source: testSource, Data: []byte{0xff, 0xfe, 0x01}})
	if !errors.Is(err, domain.ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
	entry, ok := obs.find("notification_not_text")
	if !ok || entry.attrs["hex"] != "fffe01" {
		t.Fatalf("expected hex diagnostic, got %+v", entry)
	}
	if len(sink.records()) != 0 || state.Snapshot().Messages != 0 {
		t.Fatalf("invalid payload must be discarded")
	}
}

func TestRouterSinkFailureIsContained(t *testing.T) {
	state := session.New(false)
	sink := &recordingSink{err: errors.New("disk full")}
	obs := newMockObs()
	r := NewRouter(decoder.New(), state, sink, obs)

	err := r.Handle(context.Background(), note("UV_Index:2"))
	if !errors.Is(err, domain.ErrSinkWrite) {
		t.Fatalf("expected ErrSinkWrite, got %v", err)
	}
	if obs.counter(observability.MetricSinkFailures) != 1 {
		t.Fatalf("expected sink failure counted")
	}
	if state.LastMessage() != "UV_Index:2" {
		t.Fatalf("state is updated before the append")
	}

	sink.err = nil
	if err := r.Handle(context.Background(), note("UV_Index:3")); err != nil {
		t.Fatalf("router must keep working after a failure: %v", err)
	}
}

func TestRouterWritesDegradedRecords(t *testing.T) {
	state := session.New(false)
	sink := &recordingSink{}
	obs := newMockObs()
	r := NewRouter(decoder.New(), state, sink, obs)

	if err := r.Handle(context.Background(), note("Battery:full%|Magnetic Field X:1")); err != nil {
		t.Fatalf("degraded record is still written: %v", err)
	}
	recs := sink.records()
	if len(recs) != 1 {
		t.Fatalf("expected one record")
	}
	if got := recs[0].Row(); len(got) != int(domain.NumFields) || got[1] != domain.NotAvailable || got[4] != domain.NotAvailable {
		t.Fatalf("unexpected row %v", got)
	}
	if obs.counter(observability.MetricRecordsDegraded) != 1 {
		t.Fatalf("expected degraded record counted")
	}
}

type panickingSink struct{ recordingSink }

func (p *panickingSink) Append(context.Context, domain.Record) error { panic("boom") }

func TestRouterRecoversFromPanics(t *testing.T) {
	obs := newMockObs()
	r := NewRouter(decoder.New(), session.New(false), &panickingSink{}, obs)

	if err := r.Handle(context.Background(), note("Battery:1%")); err == nil {
		t.Fatalf("expected panic to surface as an error")
	}
	if _, ok := obs.find("notification_panic"); !ok {
		t.Fatalf("expected panic to be logged")
	}
}
