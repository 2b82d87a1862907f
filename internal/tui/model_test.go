package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ghalamif/AegisSense/internal/status"
)

type fakeClient struct {
	st      status.Status
	err     error
	toggles int
}

func (f *fakeClient) Status(context.Context) (status.Status, error) { return f.st, f.err }

func (f *fakeClient) Toggle(context.Context) (status.Status, error) {
	f.toggles++
	f.st.Paused = !f.st.Paused
	f.st.Acquisition = "Running"
	if f.st.Paused {
		f.st.Acquisition = "Paused"
	}
	return f.st, f.err
}

func pausedStatus() status.Status {
	return status.Status{
		Acquisition: "Paused",
		Paused:      true,
		LastMessage: "NA",
		Header:      []string{"Time", "Battery"},
		LinkState:   "streaming",
		Address:     "AA:BB:CC:DD:EE:FF",
	}
}

func TestModelLoadsStatusAndSchedulesPoll(t *testing.T) {
	client := &fakeClient{st: pausedStatus()}
	model := NewModel(client, time.Millisecond)

	msg := model.Init()()
	updated, cmd := model.Update(msg)
	model = updated.(Model)

	if !model.loaded || model.st.LastMessage != "NA" {
		t.Fatalf("expected status to be loaded, got %+v", model.st)
	}
	if cmd == nil {
		t.Fatalf("expected a poll tick after a polled status")
	}
	if _, ok := cmd().(tickMsg); !ok {
		t.Fatalf("expected tick message")
	}

	view := model.View()
	for _, want := range []string{"Acquisition:", "Paused", "Last Message:", "NA", "streaming"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}
}

func TestModelToggleKey(t *testing.T) {
	client := &fakeClient{st: pausedStatus()}
	model := NewModel(client, time.Second)

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	if cmd == nil {
		t.Fatalf("expected toggle command")
	}
	updated, next := model.Update(cmd())
	model = updated.(Model)

	if client.toggles != 1 {
		t.Fatalf("expected one toggle, got %d", client.toggles)
	}
	if model.st.Paused || !strings.Contains(model.View(), "Running") {
		t.Fatalf("expected running after toggle")
	}
	if next != nil {
		t.Fatalf("a toggle reply must not start a second poll loop")
	}
}

func TestModelShowsErrors(t *testing.T) {
	client := &fakeClient{err: errors.New("connection refused")}
	model := NewModel(client, time.Second)

	updated, _ := model.Update(model.Init()())
	model = updated.(Model)
	if model.loaded {
		t.Fatalf("status must not be marked loaded on error")
	}
	if !strings.Contains(model.View(), "connection refused") {
		t.Fatalf("expected error in view")
	}
}

func TestModelQuit(t *testing.T) {
	model := NewModel(&fakeClient{}, time.Second)

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected quit message")
	}
}
