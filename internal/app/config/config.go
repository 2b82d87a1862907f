package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ghalamif/AegisSense/internal/adapters/observability"
	"github.com/ghalamif/AegisSense/internal/adapters/sink"
	"github.com/ghalamif/AegisSense/internal/app/supervisor"
	"github.com/ghalamif/AegisSense/internal/domain"
	"github.com/ghalamif/AegisSense/internal/ports"
)

// Defaults for the reference peripheral firmware.
const (
	DefaultPeripheralName = "ESP32H2_BLE"
	DefaultSourceID       = "abcd1234-ab12-cd34-ef56-1234567890ab"
	DefaultCSVFileName    = "sensor_data.csv"
)

type Config struct {
	Peripheral  PeripheralConfig        `yaml:"peripheral"`
	Supervisor  supervisor.Config       `yaml:"supervisor"`
	Acquisition AcquisitionConfig       `yaml:"acquisition"`
	Sink        SinkConfig              `yaml:"sink"`
	Policy      ports.Policy            `yaml:"policy"`
	WAL         WALConfig               `yaml:"wal"`
	HTTP        HTTPConfig              `yaml:"http"`
	Log         observability.LogConfig `yaml:"log"`
}

type PeripheralConfig struct {
	Name          string   `yaml:"name"`
	Address       string   `yaml:"address"`
	Sources       []string `yaml:"sources"`
	SkipDiscovery bool     `yaml:"skip_discovery"`
	HCIDevice     int      `yaml:"hci_device"`
}

type AcquisitionConfig struct {
	// StartPaused defaults to true; a pointer keeps an explicit false.
	StartPaused *bool `yaml:"start_paused"`
}

// Paused reports the effective initial gate.
func (a AcquisitionConfig) Paused() bool {
	return a.StartPaused == nil || *a.StartPaused
}

type SinkConfig struct {
	CSV    CSVConfig    `yaml:"csv"`
	SQL    SQLConfig    `yaml:"sql"`
	SQLite SQLiteConfig `yaml:"sqlite"`
}

type CSVConfig struct {
	Enabled  *bool  `yaml:"enabled"`
	Dir      string `yaml:"dir"`
	FileName string `yaml:"file_name"`
}

func (c CSVConfig) On() bool { return c.Enabled == nil || *c.Enabled }

type SQLConfig struct {
	Driver     string `yaml:"driver"`
	ConnString string `yaml:"conn_string"`
	Table      string `yaml:"table"`
}

func (c SQLConfig) On() bool { return c.ConnString != "" }

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type WALConfig struct {
	Dir string `yaml:"dir"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// Parse decodes YAML, fills defaults and validates.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a validated configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.ApplyDefaults()
	return &cfg
}

func (c *Config) ApplyDefaults() {
	if c.Peripheral.Name == "" {
		c.Peripheral.Name = DefaultPeripheralName
	}
	if c.Peripheral.Address == "" {
		c.Peripheral.Address = domain.PlaceholderAddress
	}
	if len(c.Peripheral.Sources) == 0 {
		c.Peripheral.Sources = []string{DefaultSourceID}
	}

	c.Supervisor.ApplyDefaults()

	if c.Sink.CSV.Dir == "" {
		c.Sink.CSV.Dir = "."
	}
	if c.Sink.CSV.FileName == "" {
		c.Sink.CSV.FileName = DefaultCSVFileName
	}
	if c.Sink.SQL.Driver == "" {
		c.Sink.SQL.Driver = sink.DriverPostgres
	}
	if c.Sink.SQL.Table == "" {
		c.Sink.SQL.Table = "telemetry_records"
	}

	if c.Policy.MaxWALSizeBytes == 0 {
		c.Policy.MaxWALSizeBytes = 1 << 30
	}
	if c.Policy.MaxQueueLen == 0 {
		c.Policy.MaxQueueLen = 10_000
	}
	if c.Policy.MaxBatchSize == 0 {
		c.Policy.MaxBatchSize = 500
	}
	if c.Policy.IdleSleep == 0 {
		c.Policy.IdleSleep = 50 * time.Millisecond
	}
	if c.Policy.OnWALFull == "" {
		c.Policy.OnWALFull = "drop"
	}

	if c.WAL.Dir == "" {
		c.WAL.Dir = "./data/wal"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":9100"
	}
	c.Log.ApplyDefaults()
}

func (c *Config) Validate() error {
	var errs []error
	if c.Peripheral.Name == "" {
		errs = append(errs, errors.New("peripheral.name is required"))
	}
	if c.Peripheral.SkipDiscovery && c.Peripheral.Address == domain.PlaceholderAddress {
		errs = append(errs, errors.New("peripheral.skip_discovery needs a concrete peripheral.address"))
	}
	if c.Peripheral.HCIDevice < 0 {
		errs = append(errs, errors.New("peripheral.hci_device must not be negative"))
	}
	if err := c.Supervisor.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("supervisor: %w", err))
	}
	if !c.Sink.CSV.On() && !c.Sink.SQL.On() && c.Sink.SQLite.Path == "" {
		errs = append(errs, errors.New("sink: at least one of csv, sql or sqlite must be enabled"))
	}
	if c.Sink.SQL.On() && !sink.ValidDriver(c.Sink.SQL.Driver) {
		errs = append(errs, fmt.Errorf("sink.sql.driver %q is not supported", c.Sink.SQL.Driver))
	}
	if c.Policy.MaxQueueLen < 0 || c.Policy.MaxBatchSize < 0 || c.Policy.IdleSleep < 0 || c.Policy.MaxWALSizeBytes < 0 {
		errs = append(errs, errors.New("policy: limits must not be negative"))
	}
	switch c.Policy.OnWALFull {
	case "drop", "block":
	default:
		errs = append(errs, fmt.Errorf("policy.on_wal_full %q must be drop or block", c.Policy.OnWALFull))
	}
	if c.Sink.SQL.On() && c.WAL.Dir == "" {
		errs = append(errs, errors.New("wal.dir is required with the sql sink"))
	}
	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr is required"))
	}
	if err := c.Log.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("log: %w", err))
	}
	return errors.Join(errs...)
}
