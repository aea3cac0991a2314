package bootstrap

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/achinchen/articles-assistant/internal/core/domain"
)

// Tuning holds the runtime-adjustable knobs of the optimizer, the enhancer and the cache.
type Tuning struct {
	Threshold   domain.ThresholdConfig   `yaml:"threshold"`
	Enhancement domain.EnhancementConfig `yaml:"enhancement"`
	Cache       domain.CacheConfig       `yaml:"cache"`
}

func DefaultTuning() Tuning {
	return Tuning{
		Threshold:   domain.DefaultThresholdConfig(),
		Enhancement: domain.DefaultEnhancementConfig(),
		Cache:       domain.DefaultCacheConfig(),
	}
}

// LoadTuning decodes the YAML file at path over the defaults. Keys absent
// from the file keep their default value; an empty path yields the defaults.
func LoadTuning(path string) (Tuning, error) {
	tuning := DefaultTuning()
	if strings.TrimSpace(path) == "" {
		return tuning, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, fmt.Errorf("read tuning file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &tuning); err != nil {
		return Tuning{}, fmt.Errorf("parse tuning file %s: %w", path, err)
	}
	if err := tuning.validate(); err != nil {
		return Tuning{}, fmt.Errorf("tuning file %s: %w", path, err)
	}
	return tuning, nil
}

func (t Tuning) validate() error {
	th := t.Threshold
	if th.MinThreshold < 0 || th.MaxThreshold > 1 || th.MinThreshold > th.MaxThreshold {
		return fmt.Errorf("threshold bounds must satisfy 0 <= min <= max <= 1")
	}
	if th.HistorySize <= 0 {
		return fmt.Errorf("threshold history_size must be positive")
	}
	if t.Enhancement.MinQueryLength < 0 || t.Enhancement.MaxQueryLength < t.Enhancement.MinQueryLength {
		return fmt.Errorf("enhancement query length bounds are inverted")
	}
	if t.Cache.TTL.Min <= 0 || t.Cache.TTL.Max < t.Cache.TTL.Min {
		return fmt.Errorf("cache ttl bounds must satisfy 0 < min <= max")
	}
	return nil
}
