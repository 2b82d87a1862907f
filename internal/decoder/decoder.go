// Package decoder turns the peripheral's delimited text notifications into
// fixed-schema telemetry records.
//
// A payload is a sequence of "|" separated sections such as
//
//	Time:12:00:00|Battery:87%|Light(LUX):150.2|UV_Index:3.1|Magnetic Field X:1.0, Y:-2.0, Z:0.5|CO2(ppm):450 Temp(C):21.3 Hum(%RH):40
//
// Sections are recognised by label; anything else is ignored so firmware can
// add fields without breaking older decoders.
package decoder

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ghalamif/AegisSense/internal/domain"
)

const (
	sectionDelimiter = "|"
	timeLayout       = "15:04:05"

	labelTime     = "Time:"
	labelBattery  = "Battery:"
	labelLight    = "Light(LUX)"
	labelUV       = "UV_Index"
	labelMagnetic = "Magnetic Field"
	labelCO2      = "CO2(ppm)"
	labelTemp     = "Temp(C)"
	labelHum      = "Hum(%RH)"
)

var (
	magneticPattern = regexp.MustCompile(`X:([-\d.]+),\s*Y:([-\d.]+),\s*Z:([-\d.]+)`)
	co2Pattern      = regexp.MustCompile(`CO2\(ppm\):([\d.]+)`)
	tempPattern     = regexp.MustCompile(`Temp\(C\):([-\d.]+)`)
	humPattern      = regexp.MustCompile(`Hum\(%RH\):([\d.]+)`)

	errNoMatch   = errors.New("pattern did not match")
	errNonFinite = errors.New("value is not finite")
	errNoValue   = errors.New("missing value")
)

// Decoder stamps records with its clock. The zero value uses time.Now.
type Decoder struct {
	now func() time.Time
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithClock overrides the wall clock used for the Time field.
func WithClock(now func() time.Time) Option {
	return func(d *Decoder) {
		if now != nil {
			d.now = now
		}
	}
}

func New(opts ...Option) *Decoder {
	d := &Decoder{now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

var std = New()

// Decode decodes payload with the package default decoder.
func Decode(payload string) (domain.Record, error) { return std.Decode(payload) }

// Decode always returns a complete record. Fields the payload did not populate
// are NotAvailable. The error, when non-nil, wraps domain.ErrDecode and lists
// the fields that were present but could not be parsed; the record is still
// usable.
func (d *Decoder) Decode(payload string) (domain.Record, error) {
	var (
		rec  domain.Record
		errs []error
	)

	set := func(f domain.Field, raw string) {
		v, err := parseFloat(raw)
		if err != nil {
			errs = append(errs, &domain.FieldError{Field: f, Input: raw, Err: err})
			return
		}
		rec[f] = domain.Float(v)
	}

	extract := func(section, label string, re *regexp.Regexp, f domain.Field) {
		if !strings.Contains(section, label) {
			return
		}
		m := re.FindStringSubmatch(section)
		if m == nil {
			errs = append(errs, &domain.FieldError{Field: f, Input: section, Err: errNoMatch})
			return
		}
		set(f, m[1])
	}

	for _, raw := range strings.Split(payload, sectionDelimiter) {
		section := strings.TrimSpace(raw)
		switch {
		case strings.HasPrefix(section, labelTime):
			// The peripheral's own clock is not trusted.
			rec[domain.FieldTime] = domain.Text(d.clock().Format(timeLayout))

		case strings.HasPrefix(section, labelBattery):
			set(domain.FieldBattery, strings.ReplaceAll(labelValue(section), "%", ""))

		case strings.Contains(section, labelLight):
			set(domain.FieldLightLUX, labelValue(section))

		case strings.Contains(section, labelUV):
			set(domain.FieldUVIndex, labelValue(section))

		case strings.Contains(section, labelMagnetic):
			if err := decodeMagnetic(section, &rec); err != nil {
				errs = append(errs, err)
			}

		case strings.Contains(section, labelCO2),
			strings.Contains(section, labelTemp),
			strings.Contains(section, labelHum):
			extract(section, labelCO2, co2Pattern, domain.FieldCO2)
			extract(section, labelTemp, tempPattern, domain.FieldTempC)
			extract(section, labelHum, humPattern, domain.FieldHumRH)
		}
	}

	if len(errs) > 0 {
		return rec, domain.Wrap(domain.ErrDecode, "decode", errors.Join(errs...))
	}
	return rec, nil
}

func (d *Decoder) clock() time.Time {
	if d == nil || d.now == nil {
		return time.Now()
	}
	return d.now()
}

// decodeMagnetic sets all three axes or none of them.
func decodeMagnetic(section string, rec *domain.Record) error {
	m := magneticPattern.FindStringSubmatch(section)
	if m == nil {
		return &domain.FieldError{Field: domain.FieldMagneticX, Input: section, Err: errNoMatch}
	}
	var axes [3]float64
	for i := range axes {
		v, err := parseFloat(m[i+1])
		if err != nil {
			return &domain.FieldError{Field: domain.FieldMagneticX + domain.Field(i), Input: m[i+1], Err: err}
		}
		axes[i] = v
	}
	rec[domain.FieldMagneticX] = domain.Float(axes[0])
	rec[domain.FieldMagneticY] = domain.Float(axes[1])
	rec[domain.FieldMagneticZ] = domain.Float(axes[2])
	return nil
}

// labelValue returns the text between the first and second colon.
func labelValue(section string) string {
	parts := strings.SplitN(section, ":", 3)
	if len(parts) < 2 {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func parseFloat(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, errNoValue
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errNonFinite
	}
	return v, nil
}
