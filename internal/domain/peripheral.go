package domain

import (
	"strings"
	"sync"
	"time"
)

// PlaceholderAddress marks an identity whose transport address has not been discovered yet.
const PlaceholderAddress = "XX:XX:XX:XX:XX:XX"

// Notification is one asynchronous payload pushed by a notification source.
type Notification struct {
	Source     string
	Data       []byte
	ReceivedAt time.Time
}

// PeripheralIdentity names the single peripheral the supervisor manages.
// The name is fixed; the address is resolved once by discovery and the
// source set only grows.
type PeripheralIdentity struct {
	name string

	mu       sync.RWMutex
	address  string
	resolved bool
	sources  []string
	seen     map[string]struct{}
}

// NewPeripheralIdentity builds an unresolved identity from configuration. The
// configured address is only a hint until Resolve is called.
func NewPeripheralIdentity(name, address string, sources []string) *PeripheralIdentity {
	if address == "" {
		address = PlaceholderAddress
	}
	p := &PeripheralIdentity{
		name:    name,
		address: address,
		seen:    make(map[string]struct{}, len(sources)),
	}
	for _, s := range sources {
		p.AddSource(s)
	}
	return p
}

func (p *PeripheralIdentity) Name() string { return p.name }

func (p *PeripheralIdentity) Address() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.address
}

// Resolved reports whether the address came from discovery or configuration.
func (p *PeripheralIdentity) Resolved() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.resolved
}

// Resolve records the discovered address.
func (p *PeripheralIdentity) Resolve(address string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.address = address
	p.resolved = true
}

// AddSource adds a notification source identifier. It returns false when the
// source was already known.
func (p *PeripheralIdentity) AddSource(id string) bool {
	key := NormalizeSourceID(id)
	if key == "" {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.seen[key]; ok {
		return false
	}
	p.seen[key] = struct{}{}
	p.sources = append(p.sources, key)
	return true
}

// Sources returns the known sources in the order they were added.
func (p *PeripheralIdentity) Sources() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, len(p.sources))
	copy(out, p.sources)
	return out
}

// NormalizeSourceID canonicalises a characteristic identifier so that
// "ABCD-..." and "abcd-..." refer to the same source.
func NormalizeSourceID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
