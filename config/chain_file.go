package config

import (
	"fmt"
	"os"
	"time"

	"github.com/upb/answer-detector/services/classifier"
	"gopkg.in/yaml.v3"
)

// chainFile is the on-disk layout of a classifier chain:
//
//	backends:
//	  - name: ModelA
//	    latency: 1s
//	    jitter: 250ms
//	    success_rate: 0.9
type chainFile struct {
	Backends []chainFileBackend `yaml:"backends"`
}

type chainFileBackend struct {
	Name        string   `yaml:"name"`
	Latency     string   `yaml:"latency"`
	Jitter      string   `yaml:"jitter"`
	SuccessRate *float64 `yaml:"success_rate"`
}

// LoadChainFile reads a classifier chain from a YAML file. Backends keep the
// order in which they appear in the file.
func LoadChainFile(path string) ([]classifier.SimulatedConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read chain file: %w", err)
	}
	return ParseChain(data)
}

// ParseChain decodes a YAML classifier chain
func ParseChain(data []byte) ([]classifier.SimulatedConfig, error) {
	var file chainFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse chain file: %w", err)
	}
	if len(file.Backends) == 0 {
		return nil, fmt.Errorf("chain file lists no backends")
	}

	configs := make([]classifier.SimulatedConfig, 0, len(file.Backends))
	for i, b := range file.Backends {
		if b.SuccessRate == nil {
			return nil, fmt.Errorf("backend %d (%s): success_rate is required", i, b.Name)
		}

		latency, err := parseDuration(b.Latency)
		if err != nil {
			return nil, fmt.Errorf("backend %d (%s): invalid latency: %w", i, b.Name, err)
		}
		jitter, err := parseDuration(b.Jitter)
		if err != nil {
			return nil, fmt.Errorf("backend %d (%s): invalid jitter: %w", i, b.Name, err)
		}

		cfg := classifier.SimulatedConfig{
			Name:        b.Name,
			Latency:     latency,
			Jitter:      jitter,
			SuccessRate: *b.SuccessRate,
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}

	return configs, nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
