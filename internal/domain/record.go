package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// NotAvailable is written in place of any field the notification did not populate.
const NotAvailable = "NA"

// Field indexes one column of a Record.
type Field int

const (
	FieldTime Field = iota
	FieldBattery
	FieldLightLUX
	FieldUVIndex
	FieldMagneticX
	FieldMagneticY
	FieldMagneticZ
	FieldCO2
	FieldTempC
	FieldHumRH

	// NumFields is the fixed width of every Record.
	NumFields
)

var fieldNames = [NumFields]string{
	"Time",
	"Battery",
	"LightLUX",
	"UV_Index",
	"Magnetic_X",
	"Magnetic_Y",
	"Magnetic_Z",
	"CO2ppm",
	"TempC",
	"HumRH",
}

func (f Field) String() string {
	if f < 0 || f >= NumFields {
		return "Field(" + strconv.Itoa(int(f)) + ")"
	}
	return fieldNames[f]
}

// Header returns the persisted column names in schema order.
func Header() []string {
	out := make([]string, NumFields)
	copy(out, fieldNames[:])
	return out
}

// Value is a single record field: a float, a formatted time of day, or not available.
type Value struct {
	Num   float64 `cbor:"1,keyasint,omitempty"`
	Text  string  `cbor:"2,keyasint,omitempty"`
	Valid bool    `cbor:"3,keyasint,omitempty"`
}

// Float returns a present numeric value.
func Float(v float64) Value { return Value{Num: v, Valid: true} }

// Text returns a present textual value (used for the time-of-day stamp).
func Text(s string) Value { return Value{Text: s, Valid: true} }

// String renders the value the way it is persisted.
func (v Value) String() string {
	if !v.Valid {
		return NotAvailable
	}
	if v.Text != "" {
		return v.Text
	}
	s := strconv.FormatFloat(v.Num, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// Record is one decoded telemetry snapshot. It is an array so copies never
// share storage with the original.
type Record [NumFields]Value

// Get returns the value of field f.
func (r Record) Get(f Field) Value {
	if f < 0 || f >= NumFields {
		return Value{}
	}
	return r[f]
}

// With returns a copy of r with field f set to v.
func (r Record) With(f Field, v Value) Record {
	if f >= 0 && f < NumFields {
		r[f] = v
	}
	return r
}

// Row renders the record in schema order, NotAvailable for missing fields.
func (r Record) Row() []string {
	out := make([]string, NumFields)
	for i, v := range r {
		out[i] = v.String()
	}
	return out
}

// MarshalJSON emits an object keyed by column name in schema order. Missing
// fields are null, numbers stay numbers.
func (r Record) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, v := range r {
		if i > 0 {
			b.WriteByte(',')
		}
		key, _ := json.Marshal(fieldNames[i])
		b.Write(key)
		b.WriteByte(':')
		var (
			raw []byte
			err error
		)
		switch {
		case !v.Valid:
			raw = []byte("null")
		case v.Text != "":
			raw, err = json.Marshal(v.Text)
		default:
			raw, err = json.Marshal(v.Num)
		}
		if err != nil {
			return nil, err
		}
		b.Write(raw)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}
