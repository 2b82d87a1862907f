package ports

import "time"

// Policy bounds the WAL-backed pipeline. A full queue never rejects a record:
// the record stays in the WAL and is queued once the backlog drains.
type Policy struct {
	MaxWALSizeBytes int64         `yaml:"max_wal_size_bytes"`
	MaxQueueLen     int           `yaml:"max_queue_len"`
	MaxBatchSize    int           `yaml:"max_batch_size"`
	IdleSleep       time.Duration `yaml:"idle_sleep"`

	OnWALFull string `yaml:"on_wal_full"` // "drop", "block"
}
