package resolver

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/rosterwatch/depthsync/internal/model"
)

// Config holds the resolver's tunable parameters. The weighted-score formula
// (reliability × confidence × decay) is the contract; the numbers here are not.
type Config struct {
	Reliability map[model.Source]float64 `yaml:"reliability"`
	Decay       DecayConfig              `yaml:"decay"`
}

// DecayConfig holds recency-decay parameters for observation staleness.
type DecayConfig struct {
	HalfLifeDays float64 `yaml:"half_life_days"`
	Floor        float64 `yaml:"floor"`
}

// DefaultConfig returns the shipped tuning: official team sources most
// reliable, statistical inference least, one-week half-life (player status
// goes stale fast within a season).
func DefaultConfig() *Config {
	return &Config{
		Reliability: map[model.Source]float64{
			model.SourceTeamNotes:      0.95,
			model.SourceVendorESPN:     0.85,
			model.SourceVendor247:      0.80,
			model.SourceVendorOn3:      0.80,
			model.SourceCFBDAPI:        0.75,
			model.SourceStatsInference: 0.65,
			model.SourceUnknown:        0.40,
		},
		Decay: DecayConfig{
			HalfLifeDays: 7,
			Floor:        0.1,
		},
	}
}

// LoadConfig reads resolver tuning from a YAML file, filling gaps from
// defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "resolver: read config %s", path)
	}

	var wrapper struct {
		Resolver Config `yaml:"resolver"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "resolver: parse config")
	}

	cfg := &wrapper.Resolver
	defaults := DefaultConfig()
	if cfg.Reliability == nil {
		cfg.Reliability = defaults.Reliability
	} else {
		for src, w := range defaults.Reliability {
			if _, ok := cfg.Reliability[src]; !ok {
				cfg.Reliability[src] = w
			}
		}
	}
	if cfg.Decay.HalfLifeDays == 0 {
		cfg.Decay.HalfLifeDays = defaults.Decay.HalfLifeDays
	}
	if cfg.Decay.Floor == 0 {
		cfg.Decay.Floor = defaults.Decay.Floor
	}

	return cfg, nil
}

// ReliabilityOf returns the reliability weight for a source, falling back to
// the unknown-source weight.
func (c *Config) ReliabilityOf(src model.Source) float64 {
	if w, ok := c.Reliability[src]; ok {
		return w
	}
	return c.Reliability[model.SourceUnknown]
}
