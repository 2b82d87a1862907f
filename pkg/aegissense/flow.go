package aegissense

import (
	"context"
	"fmt"
)

// Flow is a convenience builder that lets callers say Conf → StreamIN → StreamOUT
// without touching the underlying hexagonal wiring.
type Flow struct {
	cfg  *Config
	opts []RuntimeOption
}

// FlowOption mutates the Flow after configuration is loaded.
type FlowOption func(*Flow)

// StreamInOption configures the transport/session side of the runtime.
type StreamInOption func(*Flow)

// StreamOutOption configures the sink/observability side of the runtime.
type StreamOutOption func(*Flow)

// Conf loads YAML from disk, applies FlowOption values, and returns a Flow builder.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return ConfFromConfig(cfg, opts...)
}

// ConfFromConfig bootstraps a Flow from an in-memory Config.
func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	f := &Flow{cfg: cfg}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f, nil
}

// Config returns the underlying configuration so callers can tweak it before building a runtime.
func (f *Flow) Config() *Config {
	if f == nil {
		return nil
	}
	return f.cfg
}

// Options appends raw RuntimeOption values to the builder for advanced scenarios.
func (f *Flow) Options(opts ...RuntimeOption) *Flow {
	if f == nil {
		return nil
	}
	f.appendOptions(opts...)
	return f
}

// StreamIN records transport-side overrides (transport, session state, observability).
func (f *Flow) StreamIN(opts ...StreamInOption) *Flow {
	if f == nil {
		return nil
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// StreamOUT records sink-side overrides and builds a Runtime ready to run.
func (f *Flow) StreamOUT(opts ...StreamOutOption) (*Runtime, error) {
	if f == nil {
		return nil, fmt.Errorf("flow is nil")
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return NewRuntime(f.cfg, f.opts...)
}

// Run is a shortcut for StreamOUT + runtime.Run.
func (f *Flow) Run(ctx context.Context, opts ...StreamOutOption) error {
	rt, err := f.StreamOUT(opts...)
	if err != nil {
		return err
	}
	return rt.Run(ctx)
}

// WithFlowOptions appends RuntimeOption values during Conf.
func WithFlowOptions(opts ...RuntimeOption) FlowOption {
	return func(f *Flow) {
		if f != nil {
			f.appendOptions(opts...)
		}
	}
}

// StreamInTransport injects a custom transport (simulators, replays, other radios).
func StreamInTransport(t Transport) StreamInOption {
	return func(f *Flow) {
		if f != nil && t != nil {
			f.appendOptions(WithTransport(t))
		}
	}
}

// StreamInState shares a session state with the caller.
func StreamInState(s *SessionState) StreamInOption {
	return func(f *Flow) {
		if f != nil && s != nil {
			f.appendOptions(WithState(s))
		}
	}
}

// StreamInObservability overrides the default Prometheus-based observability stack.
func StreamInObservability(obs Observability) StreamInOption {
	return func(f *Flow) {
		if f != nil && obs != nil {
			f.appendOptions(WithObservability(obs))
		}
	}
}

// StreamInPeripheral overrides the advertised name matched during discovery.
func StreamInPeripheral(name string) StreamInOption {
	return func(f *Flow) {
		if f != nil && name != "" {
			f.cfg.Peripheral.Name = name
		}
	}
}

// StreamInAddress connects to addr directly and skips the discovery scan.
func StreamInAddress(addr string) StreamInOption {
	return func(f *Flow) {
		if f != nil && addr != "" {
			f.cfg.Peripheral.Address = addr
			f.cfg.Peripheral.SkipDiscovery = true
		}
	}
}

// StreamInSources adds notification sources subscribed to on every session,
// on top of the ones found while enumerating the peripheral.
func StreamInSources(ids ...string) StreamInOption {
	return func(f *Flow) {
		if f != nil {
			f.cfg.Peripheral.Sources = append(f.cfg.Peripheral.Sources, ids...)
		}
	}
}

// StreamOutSink injects a custom Sink implementation.
func StreamOutSink(s Sink) StreamOutOption {
	return func(f *Flow) {
		if f != nil && s != nil {
			f.appendOptions(WithSink(s))
		}
	}
}

// StreamOutObservability replaces the default observability backend.
func StreamOutObservability(obs Observability) StreamOutOption {
	return func(f *Flow) {
		if f != nil && obs != nil {
			f.appendOptions(WithObservability(obs))
		}
	}
}

// StreamOutCallback installs a sink built from a simple callback function.
func StreamOutCallback(name string, fn RecordHandler) StreamOutOption {
	return func(f *Flow) {
		if f != nil {
			f.appendOptions(WithSink(NewCallbackSink(name, fn)))
		}
	}
}

// StreamOutAcquisition sets whether records are persisted from the start
// (running) or only after an operator resumes acquisition.
func StreamOutAcquisition(running bool) StreamOutOption {
	return func(f *Flow) {
		if f != nil {
			paused := !running
			f.cfg.Acquisition.StartPaused = &paused
		}
	}
}

// StreamOutCSV writes the CSV destination into dir.
func StreamOutCSV(dir string) StreamOutOption {
	return func(f *Flow) {
		if f != nil && dir != "" {
			on := true
			f.cfg.Sink.CSV.Enabled = &on
			f.cfg.Sink.CSV.Dir = dir
		}
	}
}

func (f *Flow) appendOptions(opts ...RuntimeOption) {
	for _, opt := range opts {
		if opt != nil {
			f.opts = append(f.opts, opt)
		}
	}
}
