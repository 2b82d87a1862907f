package aegissense

import (
	base "github.com/ghalamif/AegisSense/pkg/aegissense"
)

// Re-exported errors for convenience.
var (
	ErrDiscoveryMiss     = base.ErrDiscoveryMiss
	ErrConnect           = base.ErrConnect
	ErrSubscribe         = base.ErrSubscribe
	ErrConnectionLost    = base.ErrConnectionLost
	ErrDecode            = base.ErrDecode
	ErrSinkWrite         = base.ErrSinkWrite
	ErrWALFull           = base.ErrWALFull
	ErrChannelSinkClosed = base.ErrChannelSinkClosed
)

// Type aliases so consumers can import github.com/ghalamif/AegisSense directly.
type (
	Config                  = base.Config
	PeripheralConfig        = base.PeripheralConfig
	SupervisorConfig        = base.SupervisorConfig
	AcquisitionConfig       = base.AcquisitionConfig
	SinkConfig              = base.SinkConfig
	Policy                  = base.Policy
	WALConfig               = base.WALConfig
	HTTPConfig              = base.HTTPConfig
	LogConfig               = base.LogConfig
	Flow                    = base.Flow
	FlowOption              = base.FlowOption
	StreamInOption          = base.StreamInOption
	StreamOutOption         = base.StreamOutOption
	Runtime                 = base.Runtime
	RuntimeOption           = base.RuntimeOption
	Record                  = base.Record
	Field                   = base.Field
	Value                   = base.Value
	RecordHandler           = base.RecordHandler
	CallbackSink            = base.CallbackSink
	Transport               = base.Transport
	Link                    = base.Link
	Advertisement           = base.Advertisement
	Characteristic          = base.Characteristic
	NotificationHandler     = base.NotificationHandler
	Sink                    = base.Sink
	BatchSink               = base.BatchSink
	Observability           = base.Observability
	LogField                = base.LogField
	WAL                     = base.WAL
	WALEntryID              = base.WALEntryID
	WALStats                = base.WALStats
	SessionState            = base.SessionState
	Snapshot                = base.Snapshot
	ExternalPublisher       = base.ExternalPublisher
	ExternalPublisherConfig = base.ExternalPublisherConfig
)

// Record fields in schema order.
const (
	FieldTime      = base.FieldTime
	FieldBattery   = base.FieldBattery
	FieldLightLUX  = base.FieldLightLUX
	FieldUVIndex   = base.FieldUVIndex
	FieldMagneticX = base.FieldMagneticX
	FieldMagneticY = base.FieldMagneticY
	FieldMagneticZ = base.FieldMagneticZ
	FieldCO2       = base.FieldCO2
	FieldTempC     = base.FieldTempC
	FieldHumRH     = base.FieldHumRH
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

func DefaultConfig() *Config {
	return base.DefaultConfig()
}

// Flow builder helpers.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	return base.Conf(path, opts...)
}

func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	return base.ConfFromConfig(cfg, opts...)
}

func WithFlowOptions(opts ...RuntimeOption) FlowOption {
	return base.WithFlowOptions(opts...)
}

func StreamInTransport(t Transport) StreamInOption {
	return base.StreamInTransport(t)
}

func StreamInState(s *SessionState) StreamInOption {
	return base.StreamInState(s)
}

func StreamInObservability(obs Observability) StreamInOption {
	return base.StreamInObservability(obs)
}

func StreamInPeripheral(name string) StreamInOption {
	return base.StreamInPeripheral(name)
}

func StreamInAddress(addr string) StreamInOption {
	return base.StreamInAddress(addr)
}

func StreamInSources(ids ...string) StreamInOption {
	return base.StreamInSources(ids...)
}

func StreamOutAcquisition(running bool) StreamOutOption {
	return base.StreamOutAcquisition(running)
}

func StreamOutCSV(dir string) StreamOutOption {
	return base.StreamOutCSV(dir)
}

func StreamOutSink(s Sink) StreamOutOption {
	return base.StreamOutSink(s)
}

func StreamOutObservability(obs Observability) StreamOutOption {
	return base.StreamOutObservability(obs)
}

func StreamOutCallback(name string, fn RecordHandler) StreamOutOption {
	return base.StreamOutCallback(name, fn)
}

// Runtime and options.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	return base.NewRuntime(cfg, opts...)
}

func WithTransport(t Transport) RuntimeOption {
	return base.WithTransport(t)
}

func WithSink(s Sink) RuntimeOption {
	return base.WithSink(s)
}

func WithObservability(obs Observability) RuntimeOption {
	return base.WithObservability(obs)
}

func WithState(s *SessionState) RuntimeOption {
	return base.WithState(s)
}

func WithoutStatusServer() RuntimeOption {
	return base.WithoutStatusServer()
}

func NewSessionState(startPaused bool) *SessionState {
	return base.NewSessionState(startPaused)
}

// Sink adapters.
func NewCallbackSink(name string, fn RecordHandler) *CallbackSink {
	return base.NewCallbackSink(name, fn)
}

func NewChannelSink(name string, buffer int) (Sink, <-chan Record, func()) {
	return base.NewChannelSink(name, buffer)
}

// External publisher.
func NewExternalPublisher(cfg *ExternalPublisherConfig, fn RecordHandler) (*ExternalPublisher, error) {
	return base.NewExternalPublisher(cfg, fn)
}
