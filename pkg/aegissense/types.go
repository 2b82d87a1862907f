package aegissense

import (
	"github.com/ghalamif/AegisSense/internal/domain"
	"github.com/ghalamif/AegisSense/internal/ports"
	"github.com/ghalamif/AegisSense/internal/session"
)

// Record is one decoded telemetry row with a fixed set of fields.
type Record = domain.Record

// Field indexes a Record column.
type Field = domain.Field

// Value is a single Record cell.
type Value = domain.Value

// Transport discovers and connects to the peripheral (BLE, simulators, replays).
type Transport = ports.Transport

// Link is one open peripheral connection.
type Link = ports.Link

// Advertisement is a peripheral seen during a scan.
type Advertisement = ports.Advertisement

// Characteristic describes a GATT characteristic of the connected peripheral.
type Characteristic = ports.Characteristic

// NotificationHandler receives raw notification payloads from a Link.
type NotificationHandler = ports.NotificationHandler

// Sink persists decoded records one at a time, in order.
type Sink = ports.Sink

// BatchSink is a downstream store fed through the WAL.
type BatchSink = ports.BatchSink

// Observability emits metrics and structured logs.
type Observability = ports.Observability

// LogField is a structured log field used by Observability implementations.
type LogField = ports.Field

// WAL abstracts the write-ahead log used for durability and crash recovery.
type WAL = ports.WAL

// WALStats exposes WAL metadata for observability.
type WALStats = ports.WALStats

// WALEntryID uniquely identifies a WAL entry.
type WALEntryID = ports.WALEntryID

// SessionState is the live snapshot shared with the status surface.
type SessionState = session.State

// Snapshot is a point-in-time copy of SessionState.
type Snapshot = session.Snapshot

// Record fields in schema order.
const (
	FieldTime      = domain.FieldTime
	FieldBattery   = domain.FieldBattery
	FieldLightLUX  = domain.FieldLightLUX
	FieldUVIndex   = domain.FieldUVIndex
	FieldMagneticX = domain.FieldMagneticX
	FieldMagneticY = domain.FieldMagneticY
	FieldMagneticZ = domain.FieldMagneticZ
	FieldCO2       = domain.FieldCO2
	FieldTempC     = domain.FieldTempC
	FieldHumRH     = domain.FieldHumRH
)

// Failure kinds reported through logs and returned errors.
var (
	ErrDiscoveryMiss  = domain.ErrDiscoveryMiss
	ErrConnect        = domain.ErrConnect
	ErrSubscribe      = domain.ErrSubscribe
	ErrConnectionLost = domain.ErrConnectionLost
	ErrDecode         = domain.ErrDecode
	ErrSinkWrite      = domain.ErrSinkWrite
)

// NewSessionState returns a state with acquisition paused or running.
func NewSessionState(startPaused bool) *SessionState {
	return session.New(startPaused)
}
