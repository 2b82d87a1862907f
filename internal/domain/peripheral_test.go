package domain

import (
	"errors"
	"testing"
)

func TestPeripheralIdentitySources(t *testing.T) {
	p := NewPeripheralIdentity("ESP32H2_BLE", "", []string{"ABCD-1", "abcd-1", " "})
	if got := p.Sources(); len(got) != 1 || got[0] != "abcd-1" {
		t.Fatalf("expected one normalized source, got %v", got)
	}
	if p.AddSource(" Abcd-1 ") {
		t.Fatalf("duplicate source must not be added")
	}
	if !p.AddSource("ef01") {
		t.Fatalf("new source must be added")
	}
	got := p.Sources()
	got[0] = "mutated"
	if p.Sources()[0] != "abcd-1" {
		t.Fatalf("Sources must return a copy")
	}
}

func TestPeripheralIdentityResolve(t *testing.T) {
	p := NewPeripheralIdentity("ESP32H2_BLE", "", nil)
	if p.Address() != PlaceholderAddress || p.Resolved() {
		t.Fatalf("expected unresolved placeholder identity")
	}

	hinted := NewPeripheralIdentity("ESP32H2_BLE", "AA:BB:CC:DD:EE:FF", nil)
	if hinted.Resolved() {
		t.Fatalf("a configured address is only a hint")
	}

	p.Resolve("11:22:33:44:55:66")
	if !p.Resolved() || p.Address() != "11:22:33:44:55:66" || p.Name() != "ESP32H2_BLE" {
		t.Fatalf("unexpected identity after resolve")
	}
}

func TestErrorKinds(t *testing.T) {
	cause := errors.New("le-connection-abort-by-local")
	err := Wrap(ErrConnect, "connect AA", cause)

	if !errors.Is(err, ErrConnect) || !errors.Is(err, cause) {
		t.Fatalf("expected kind and cause to unwrap")
	}
	if KindOf(err) != ErrConnect {
		t.Fatalf("unexpected kind %v", KindOf(err))
	}
	if err.Error() != "connect AA: connect failed: le-connection-abort-by-local" {
		t.Fatalf("unexpected message %q", err.Error())
	}

	lost := Wrap(ErrConnectionLost, "stream", nil)
	if lost.Error() != "stream: connection lost" || KindOf(lost) != ErrConnectionLost {
		t.Fatalf("unexpected lost error %q", lost.Error())
	}
	if KindOf(errors.New("other")) != nil {
		t.Fatalf("unknown errors have no kind")
	}
}
