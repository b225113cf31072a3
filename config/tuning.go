package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tuning is the optional YAML overlay for thresholds that operators adjust without a redeploy.
//
//	live:
//	  min_words: 12
//	  cooldown: 10s
//	weights:
//	  technical: 0.5
//	  communication: 0.4
//	  completeness: 0.1
type Tuning struct {
	Live    *LiveConfig `yaml:"live"`
	Weights *Weights    `yaml:"weights"`
}

// ReadTuning parses a tuning file.
func ReadTuning(path string) (*Tuning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tuning file: %w", err)
	}
	var t Tuning
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing tuning file: %w", err)
	}
	return &t, nil
}

// ApplyTuningFile overlays non-zero values from the tuning file onto cfg.
func ApplyTuningFile(cfg *Config, path string) error {
	t, err := ReadTuning(path)
	if err != nil {
		return err
	}
	if t.Live != nil {
		mergeLive(&cfg.Live, *t.Live)
	}
	if t.Weights != nil {
		w := *t.Weights
		if w.Technical+w.Communication+w.Completeness <= 0 {
			return fmt.Errorf("tuning file %s: weights must not all be zero", path)
		}
		cfg.Scoring.Weights = w
	}
	return nil
}

func mergeLive(dst *LiveConfig, src LiveConfig) {
	if src.LowWordThreshold > 0 {
		dst.LowWordThreshold = src.LowWordThreshold
	}
	if src.FillerRatio > 0 {
		dst.FillerRatio = src.FillerRatio
	}
	if src.StreakThreshold > 0 {
		dst.StreakThreshold = src.StreakThreshold
	}
	if src.MinWords > 0 {
		dst.MinWords = src.MinWords
	}
	if src.RamblingWords > 0 {
		dst.RamblingWords = src.RamblingWords
	}
	if src.WarmUp > 0 {
		dst.WarmUp = src.WarmUp
	}
	if src.Cooldown > 0 {
		dst.Cooldown = src.Cooldown
	}
}
