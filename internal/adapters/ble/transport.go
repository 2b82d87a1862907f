// Package ble implements the peripheral transport on top of the host's HCI
// device using github.com/go-ble/ble.
package ble

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"

	"github.com/ghalamif/AegisSense/internal/domain"
	"github.com/ghalamif/AegisSense/internal/ports"
)

// Transport scans for and dials peripherals through one HCI device.
type Transport struct {
	dev ble.Device
}

// Open claims HCI device hciN.
func Open(hciDevice int) (*Transport, error) {
	dev, err := linux.NewDevice(ble.OptDeviceID(hciDevice))
	if err != nil {
		return nil, fmt.Errorf("open hci%d: %w", hciDevice, err)
	}
	return &Transport{dev: dev}, nil
}

// NewTransport wraps an already opened device.
func NewTransport(dev ble.Device) *Transport {
	return &Transport{dev: dev}
}

// Scan listens for advertisements for timeout and returns each peripheral
// once, in the order first seen.
func (t *Transport) Scan(ctx context.Context, timeout time.Duration) ([]ports.Advertisement, error) {
	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		mu   sync.Mutex
		seen = map[string]int{}
		out  []ports.Advertisement
	)
	err := t.dev.Scan(sctx, false, func(a ble.Advertisement) {
		mu.Lock()
		defer mu.Unlock()
		ad := ports.Advertisement{Name: a.LocalName(), Address: a.Addr().String(), RSSI: a.RSSI()}
		if i, ok := seen[ad.Address]; ok {
			if out[i].Name == "" {
				out[i].Name = ad.Name
			}
			out[i].RSSI = ad.RSSI
			return
		}
		seen[ad.Address] = len(out)
		out = append(out, ad)
	})

	mu.Lock()
	defer mu.Unlock()
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return out, fmt.Errorf("scan: %w", err)
	}
	return out, ctx.Err()
}

func (t *Transport) Connect(ctx context.Context, address string) (ports.Link, error) {
	client, err := t.dev.Dial(ctx, ble.NewAddr(address))
	if err != nil {
		return nil, err
	}
	return newLink(client), nil
}

// Close releases the HCI device.
func (t *Transport) Close() error {
	return t.dev.Stop()
}

type link struct {
	client ble.Client

	mu    sync.Mutex
	chars map[string]*ble.Characteristic
}

func newLink(client ble.Client) *link {
	return &link{client: client, chars: map[string]*ble.Characteristic{}}
}

// Characteristics discovers the full GATT profile, descriptors included, so
// notifying characteristics can be subscribed to afterwards.
func (l *link) Characteristics(ctx context.Context) ([]ports.Characteristic, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := l.client.DiscoverProfile(true)
	if err != nil {
		return nil, fmt.Errorf("discover profile: %w", err)
	}
	return l.index(p), nil
}

func (l *link) index(p *ble.Profile) []ports.Characteristic {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []ports.Characteristic
	for _, s := range p.Services {
		for _, c := range s.Characteristics {
			id := uuidString(c.UUID)
			l.chars[id] = c
			out = append(out, ports.Characteristic{
				Service:    uuidString(s.UUID),
				UUID:       id,
				Properties: propertyNames(c.Property),
				Notify:     c.Property&(ble.CharNotify|ble.CharIndicate) != 0,
			})
		}
	}
	return out
}

func (l *link) lookup(source string) (*ble.Characteristic, bool, error) {
	u, err := ble.Parse(source)
	if err != nil {
		return nil, false, fmt.Errorf("source %q: %w", source, err)
	}
	l.mu.Lock()
	c, ok := l.chars[uuidString(u)]
	l.mu.Unlock()
	if !ok {
		return nil, false, fmt.Errorf("source %s not offered by peripheral", source)
	}
	indicate := c.Property&ble.CharNotify == 0 && c.Property&ble.CharIndicate != 0
	return c, indicate, nil
}

func (l *link) Subscribe(ctx context.Context, source string, h ports.NotificationHandler) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c, ind, err := l.lookup(source)
	if err != nil {
		return err
	}
	return l.client.Subscribe(c, ind, func(data []byte) { h(source, data) })
}

func (l *link) Unsubscribe(ctx context.Context, source string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c, ind, err := l.lookup(source)
	if err != nil {
		return err
	}
	return l.client.Unsubscribe(c, ind)
}

func (l *link) Disconnected() <-chan struct{} { return l.client.Disconnected() }

func (l *link) Close() error {
	select {
	case <-l.client.Disconnected():
		return nil
	default:
	}
	return l.client.CancelConnection()
}

// uuidString renders u in the canonical dashed form used for source IDs.
// 16-bit UUIDs keep their short form.
func uuidString(u ble.UUID) string {
	b := ble.Reverse(u)
	if len(b) != 16 {
		return domain.NormalizeSourceID(hex.EncodeToString(b))
	}
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}

var propertyLabels = []struct {
	bit  ble.Property
	name string
}{
	{ble.CharBroadcast, "broadcast"},
	{ble.CharRead, "read"},
	{ble.CharWriteNR, "write-without-response"},
	{ble.CharWrite, "write"},
	{ble.CharNotify, "notify"},
	{ble.CharIndicate, "indicate"},
	{ble.CharSignedWrite, "authenticated-signed-writes"},
	{ble.CharExtended, "extended-properties"},
}

func propertyNames(p ble.Property) []string {
	var out []string
	for _, l := range propertyLabels {
		if p&l.bit != 0 {
			out = append(out, l.name)
		}
	}
	return out
}

var (
	_ ports.Transport = (*Transport)(nil)
	_ ports.Link      = (*link)(nil)
)
