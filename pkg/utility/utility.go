package utility

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownProvider is returned for a provider name nothing registered.
var ErrUnknownProvider = errors.New("unknown price provider")

// Configured registers every flag-configured price provider.
func Configured() *Map {
	m := NewMap()
	m.SetProvider(ProviderESIOS, configuredESIOS())
	return m
}

// Map holds the price providers by name.
type Map struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

func NewMap() *Map {
	return &Map{providers: map[string]Provider{}}
}

// Provider looks up name.
func (m *Map) Provider(name string) (Provider, error) {
	m.mu.RLock()
	p, ok := m.providers[name]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return p, nil
}

// SetProvider registers p under name, replacing any previous provider.
func (m *Map) SetProvider(name string, p Provider) {
	m.mu.Lock()
	m.providers[name] = p
	m.mu.Unlock()
}

// Names lists the registered providers in order.
func (m *Map) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
