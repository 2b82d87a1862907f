package domain

import (
	"strings"
	"testing"
)

func TestRecordRowAlwaysHasEveryField(t *testing.T) {
	var empty Record
	row := empty.Row()
	if len(row) != int(NumFields) {
		t.Fatalf("expected %d cells, got %d", NumFields, len(row))
	}
	for i, cell := range row {
		if cell != NotAvailable {
			t.Fatalf("cell %d: expected NA, got %q", i, cell)
		}
	}

	rec := Record{}.
		With(FieldTime, Text("09:30:15")).
		With(FieldBattery, Float(87)).
		With(FieldTempC, Float(-5.2))
	want := []string{"09:30:15", "87.0", "NA", "NA", "NA", "NA", "NA", "NA", "-5.2", "NA"}
	got := rec.Row()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("cell %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestHeaderOrder(t *testing.T) {
	want := "Time,Battery,LightLUX,UV_Index,Magnetic_X,Magnetic_Y,Magnetic_Z,CO2ppm,TempC,HumRH"
	if got := strings.Join(Header(), ","); got != want {
		t.Fatalf("unexpected header %s", got)
	}
	h := Header()
	h[0] = "changed"
	if Header()[0] != "Time" {
		t.Fatalf("Header must return a copy")
	}
}

func TestWithDoesNotMutateOriginal(t *testing.T) {
	base := Record{}
	_ = base.With(FieldCO2, Float(400))
	if base.Get(FieldCO2).Valid {
		t.Fatalf("With must return a copy")
	}
	if (Record{}).With(NumFields, Float(1)) != (Record{}) {
		t.Fatalf("out of range field must be ignored")
	}
	if Field(99).String() != "Field(99)" {
		t.Fatalf("unexpected name for unknown field")
	}
}

func TestRecordMarshalJSON(t *testing.T) {
	rec := Record{}.With(FieldTime, Text("10:00:00")).With(FieldUVIndex, Float(3.1))
	b, err := rec.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"Time":"10:00:00","Battery":null,"LightLUX":null,"UV_Index":3.1,"Magnetic_X":null,"Magnetic_Y":null,"Magnetic_Z":null,"CO2ppm":null,"TempC":null,"HumRH":null}`
	if string(b) != want {
		t.Fatalf("unexpected json:\n%s", b)
	}
}
