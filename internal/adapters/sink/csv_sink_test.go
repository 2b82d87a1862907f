package sink

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ghalamif/AegisSense/internal/domain"
)

func TestCSVSinkWritesHeaderAndRows(t *testing.T) {
	dir := t.TempDir()

	s, err := NewCSVSink(dir, "sensor_data.csv")
	if err != nil {
		t.Fatalf("new csv sink: %v", err)
	}
	if want := filepath.Join(dir, "0_sensor_data.csv"); s.Path() != want {
		t.Fatalf("expected path %s, got %s", want, s.Path())
	}

	rec := domain.Record{}.
		With(domain.FieldTime, domain.Text("09:30:15")).
		With(domain.FieldBattery, domain.Float(87)).
		With(domain.FieldLightLUX, domain.Float(150.2)).
		With(domain.FieldTempC, domain.Float(-5.2))
	if err := s.Append(context.Background(), rec); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %q", data)
	}
	if lines[0] != "Time,Battery,LightLUX,UV_Index,Magnetic_X,Magnetic_Y,Magnetic_Z,CO2ppm,TempC,HumRH" {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if lines[1] != "09:30:15,87.0,150.2,NA,NA,NA,NA,NA,-5.2,NA" {
		t.Fatalf("unexpected row %q", lines[1])
	}

	if err := s.Append(context.Background(), rec); err == nil {
		t.Fatalf("expected append after close to fail")
	}
}

func TestCSVSinkPicksFreshFileName(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"old.csv", "0_sensor_data.csv", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o600); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	s, err := NewCSVSink(dir, "sensor_data.csv")
	if err != nil {
		t.Fatalf("new csv sink: %v", err)
	}
	defer s.Close()

	if want := filepath.Join(dir, "2_sensor_data.csv"); s.Path() != want {
		t.Fatalf("expected %s, got %s", want, s.Path())
	}
}
