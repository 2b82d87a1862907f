package aegissense

import (
	"github.com/ghalamif/AegisSense/internal/adapters/observability"
	"github.com/ghalamif/AegisSense/internal/app/config"
	"github.com/ghalamif/AegisSense/internal/app/supervisor"
	"github.com/ghalamif/AegisSense/internal/ports"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	// PeripheralConfig names the sensor and its notification sources.
	PeripheralConfig = config.PeripheralConfig
	// SupervisorConfig holds scan, connect and backoff timings.
	SupervisorConfig = supervisor.Config
	// AcquisitionConfig sets the initial acquisition gate.
	AcquisitionConfig = config.AcquisitionConfig
	// SinkConfig selects the CSV, SQL and SQLite destinations.
	SinkConfig = config.SinkConfig
	// Policy controls WAL/queue thresholds of the SQL path.
	Policy = ports.Policy
	// WALConfig configures on-disk durability.
	WALConfig = config.WALConfig
	// HTTPConfig configures the status server.
	HTTPConfig = config.HTTPConfig
	// LogConfig configures the process logger.
	LogConfig = observability.LogConfig
)

// LoadConfig loads YAML from disk using the internal config reader.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	return config.Default()
}
