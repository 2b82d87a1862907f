package ports

import (
	"context"
	"time"
)

// Advertisement is a peripheral seen during a scan.
type Advertisement struct {
	Name    string
	Address string
	RSSI    int
}

// Characteristic describes one characteristic exposed by a connected peripheral.
type Characteristic struct {
	Service    string
	UUID       string
	Properties []string
	Notify     bool
}

// NotificationHandler receives the raw value of a notifying characteristic.
type NotificationHandler func(source string, data []byte)

// Transport discovers and connects to peripherals.
type Transport interface {
	Scan(ctx context.Context, timeout time.Duration) ([]Advertisement, error)
	Connect(ctx context.Context, address string) (Link, error)
}

// Link is one open connection. Disconnected is closed when the peripheral
// drops the link.
type Link interface {
	Characteristics(ctx context.Context) ([]Characteristic, error)
	Subscribe(ctx context.Context, source string, h NotificationHandler) error
	Unsubscribe(ctx context.Context, source string) error
	Disconnected() <-chan struct{}
	Close() error
}
