package classifier

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

// RandomSource yields draws uniform in [0, 1)
type RandomSource interface {
	Float64() float64
}

// lockedSource makes a *rand.Rand safe for concurrent callers
type lockedSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// NewRandomSource returns a concurrency-safe source seeded from seed.
// A zero seed picks a random one.
func NewRandomSource(seed uint64) RandomSource {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &lockedSource{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// SimulatedConfig holds the timing and reliability of a simulated backend
type SimulatedConfig struct {
	// Name is the backend identifier
	Name string `yaml:"name"`

	// Latency is the minimum delay before the backend responds
	Latency time.Duration `yaml:"latency"`

	// Jitter adds a uniform extra delay in [0, Jitter)
	Jitter time.Duration `yaml:"jitter"`

	// SuccessRate is the probability in [0, 1] that an attempt succeeds
	SuccessRate float64 `yaml:"success_rate"`
}

// Validate checks the simulated backend configuration
func (c SimulatedConfig) Validate() error {
	if c.Name == "" {
		return errors.New("backend name cannot be empty")
	}
	if c.Latency < 0 {
		return fmt.Errorf("backend %s: latency cannot be negative", c.Name)
	}
	if c.Jitter < 0 {
		return fmt.Errorf("backend %s: jitter cannot be negative", c.Name)
	}
	if c.SuccessRate < 0 || c.SuccessRate > 1 {
		return fmt.Errorf("backend %s: success rate %.2f outside [0, 1]", c.Name, c.SuccessRate)
	}
	return nil
}

// SimulatedBackend stands in for a real model call: it waits, then fails or
// returns a random verdict. It keeps no state between calls.
type SimulatedBackend struct {
	config SimulatedConfig
	rng    RandomSource
}

// NewSimulatedBackend creates a simulated backend. A nil rng uses a fresh
// randomly seeded source.
func NewSimulatedBackend(config SimulatedConfig, rng RandomSource) (*SimulatedBackend, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		rng = NewRandomSource(0)
	}
	return &SimulatedBackend{config: config, rng: rng}, nil
}

// Name returns the backend identifier
func (b *SimulatedBackend) Name() string {
	return b.config.Name
}

// Config returns the backend configuration
func (b *SimulatedBackend) Config() SimulatedConfig {
	return b.config
}

// Classify waits for the simulated latency, then succeeds with probability
// SuccessRate. Draws are taken in a fixed order: jitter (only when Jitter > 0),
// success, confidence, label.
func (b *SimulatedBackend) Classify(ctx context.Context, req *Request) (*Verdict, error) {
	delay := b.config.Latency
	if b.config.Jitter > 0 {
		delay += time.Duration(b.rng.Float64() * float64(b.config.Jitter))
	}

	if err := sleep(ctx, delay); err != nil {
		return nil, AsBackendError(b.config.Name, err)
	}

	if b.rng.Float64() >= b.config.SuccessRate {
		return nil, NewBackendError(b.config.Name, CodeRejected, b.config.Name+" failed", nil)
	}

	confidence := MinConfidence + b.rng.Float64()*(MaxConfidence-MinConfidence)
	if confidence >= MaxConfidence {
		// rounding at the top of the range
		confidence = math.Nextafter(MaxConfidence, MinConfidence)
	}
	result := LabelAI
	if b.rng.Float64() < 0.5 {
		result = LabelHuman
	}

	return &Verdict{
		Model:      b.config.Name,
		Confidence: confidence,
		Result:     result,
	}, nil
}

// sleep blocks for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
