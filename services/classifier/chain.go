package classifier

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEmptyChain is returned when a chain would contain no backends
	ErrEmptyChain = errors.New("chain has no backends")

	// ErrBackendNotFound is returned when a backend is not part of the chain
	ErrBackendNotFound = errors.New("backend not found")

	// ErrDuplicateBackend is returned when two backends share a name
	ErrDuplicateBackend = errors.New("backend already in chain")
)

// Chain is the ordered, immutable list of backends tried for every request.
// Position is the only thing that gives a backend priority.
type Chain struct {
	backends []Backend
	index    map[string]int // backend name -> position
}

// NewChain creates a chain from backends in priority order
func NewChain(backends ...Backend) (*Chain, error) {
	if len(backends) == 0 {
		return nil, ErrEmptyChain
	}

	c := &Chain{
		backends: make([]Backend, 0, len(backends)),
		index:    make(map[string]int, len(backends)),
	}

	for _, backend := range backends {
		if backend == nil {
			return nil, errors.New("backend cannot be nil")
		}

		name := backend.Name()
		if name == "" {
			return nil, errors.New("backend name cannot be empty")
		}
		if _, exists := c.index[name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateBackend, name)
		}

		c.index[name] = len(c.backends)
		c.backends = append(c.backends, backend)
	}

	return c, nil
}

// Len returns the number of backends in the chain. A nil chain is empty.
func (c *Chain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.backends)
}

// At returns the backend at position i
func (c *Chain) At(i int) Backend {
	return c.backends[i]
}

// Backends returns a copy of the backends in priority order
func (c *Chain) Backends() []Backend {
	out := make([]Backend, len(c.backends))
	copy(out, c.backends)
	return out
}

// Names returns the backend names in priority order
func (c *Chain) Names() []string {
	names := make([]string, len(c.backends))
	for i, backend := range c.backends {
		names[i] = backend.Name()
	}
	return names
}

// Position returns the priority position of a backend
func (c *Chain) Position(name string) (int, error) {
	i, exists := c.index[name]
	if !exists {
		return -1, ErrBackendNotFound
	}
	return i, nil
}

// BackendInfo describes one position of a chain
type BackendInfo struct {
	Position    int     `json:"position"`
	Name        string  `json:"name"`
	Simulated   bool    `json:"simulated"`
	LatencyMs   int64   `json:"latency_ms,omitempty"`
	JitterMs    int64   `json:"jitter_ms,omitempty"`
	SuccessRate float64 `json:"success_rate,omitempty"`
}

// Describe returns information about every backend in priority order
func (c *Chain) Describe() []BackendInfo {
	infos := make([]BackendInfo, len(c.backends))
	for i, backend := range c.backends {
		info := BackendInfo{Position: i, Name: backend.Name()}
		if sim, ok := backend.(*SimulatedBackend); ok {
			cfg := sim.Config()
			info.Simulated = true
			info.LatencyMs = cfg.Latency.Milliseconds()
			info.JitterMs = cfg.Jitter.Milliseconds()
			info.SuccessRate = cfg.SuccessRate
		}
		infos[i] = info
	}
	return infos
}

// DefaultChainConfigs returns the default three-backend chain, ordered
// fastest first.
func DefaultChainConfigs() []SimulatedConfig {
	return []SimulatedConfig{
		{Name: "ModelA", Latency: 1000 * time.Millisecond, SuccessRate: 0.9},
		{Name: "ModelB", Latency: 2000 * time.Millisecond, SuccessRate: 0.7},
		{Name: "ModelC", Latency: 3000 * time.Millisecond, SuccessRate: 0.95},
	}
}

// BackendBuilder creates a backend from its configuration
type BackendBuilder func(config SimulatedConfig) (Backend, error)

// ChainBuilder helps build a chain from configurations
type ChainBuilder struct {
	builder BackendBuilder
	extra   []Backend
}

// NewChainBuilder creates a chain builder that produces simulated backends
// drawing from rng. A nil rng gives every backend its own random source.
func NewChainBuilder(rng RandomSource) *ChainBuilder {
	return &ChainBuilder{
		builder: func(config SimulatedConfig) (Backend, error) {
			return NewSimulatedBackend(config, rng)
		},
	}
}

// WithBackendBuilder replaces the function used to build configured backends
func (cb *ChainBuilder) WithBackendBuilder(builder BackendBuilder) *ChainBuilder {
	cb.builder = builder
	return cb
}

// WithBackend appends a ready-made backend after the configured ones
func (cb *ChainBuilder) WithBackend(backend Backend) *ChainBuilder {
	cb.extra = append(cb.extra, backend)
	return cb
}

// Build creates the backends in configuration order and returns the chain
func (cb *ChainBuilder) Build(configs []SimulatedConfig) (*Chain, error) {
	backends := make([]Backend, 0, len(configs)+len(cb.extra))
	for _, config := range configs {
		backend, err := cb.builder(config)
		if err != nil {
			return nil, fmt.Errorf("failed to build backend %s: %w", config.Name, err)
		}
		backends = append(backends, backend)
	}
	backends = append(backends, cb.extra...)

	return NewChain(backends...)
}
