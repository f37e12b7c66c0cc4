package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/viper"

	"github.com/franz/photo-janitor/internal/analyze"
	"github.com/franz/photo-janitor/internal/store"
	"github.com/franz/photo-janitor/internal/util"
)

// Setting keys persisted in the state database. Stored thresholds act
// as defaults for later runs; explicit config always wins.
const (
	settingBlurVeryBlurry      = "blur_threshold_very_blurry"
	settingBlurBlurry          = "blur_threshold_blurry"
	settingBlurSlightlyBlurry  = "blur_threshold_slightly_blurry"
	settingExposureSensitivity = "exposure_sensitivity"
	settingNoiseThreshold      = "noise_threshold"
	settingMaxTimeGapSeconds   = "max_time_gap_seconds"
	settingSimilarityThreshold = "similarity_threshold"
)

// analyzeConfig assembles the analysis configuration with precedence:
// config file / env / flags via viper, then stored settings from a
// previous run, then built-in defaults.
func analyzeConfig(db *store.Store) (analyze.Config, error) {
	cfg := analyze.DefaultConfig()

	if db != nil {
		applyStoredSettings(db, &cfg)
	}

	applyFloat := func(key string, dst *float64) {
		if viper.IsSet(key) {
			*dst = viper.GetFloat64(key)
		}
	}

	applyFloat(settingBlurVeryBlurry, &cfg.BlurBands.VeryBlurry)
	applyFloat(settingBlurBlurry, &cfg.BlurBands.Blurry)
	applyFloat(settingBlurSlightlyBlurry, &cfg.BlurBands.SlightlyBlurry)
	applyFloat(settingExposureSensitivity, &cfg.ExposureSensitivity)
	applyFloat(settingNoiseThreshold, &cfg.NoiseThreshold)
	applyFloat(settingSimilarityThreshold, &cfg.SimilarityThreshold)

	if viper.IsSet(settingMaxTimeGapSeconds) {
		cfg.MaxTimeGap = time.Duration(viper.GetFloat64(settingMaxTimeGapSeconds) * float64(time.Second))
	}
	if viper.IsSet("batch_size") {
		cfg.BatchSize = viper.GetInt("batch_size")
	}
	if viper.IsSet("concurrency") {
		cfg.Concurrency = viper.GetInt("concurrency")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyStoredSettings(db *store.Store, cfg *analyze.Config) {
	stored, err := db.AllSettings()
	if err != nil {
		util.WarnLog("Failed to read stored settings: %v", err)
		return
	}

	readFloat := func(key string, dst *float64) {
		raw, ok := stored[key]
		if !ok {
			return
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			util.WarnLog("Ignoring invalid stored setting %s=%q", key, raw)
			return
		}
		*dst = v
	}

	readFloat(settingBlurVeryBlurry, &cfg.BlurBands.VeryBlurry)
	readFloat(settingBlurBlurry, &cfg.BlurBands.Blurry)
	readFloat(settingBlurSlightlyBlurry, &cfg.BlurBands.SlightlyBlurry)
	readFloat(settingExposureSensitivity, &cfg.ExposureSensitivity)
	readFloat(settingNoiseThreshold, &cfg.NoiseThreshold)
	readFloat(settingSimilarityThreshold, &cfg.SimilarityThreshold)

	if raw, ok := stored[settingMaxTimeGapSeconds]; ok {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			cfg.MaxTimeGap = time.Duration(v * float64(time.Second))
		}
	}
}

// persistSettings stores the thresholds used for a run so later runs
// and the cache fingerprint see the same values.
func persistSettings(db *store.Store, cfg analyze.Config) error {
	values := map[string]string{
		settingBlurVeryBlurry:      formatFloat(cfg.BlurBands.VeryBlurry),
		settingBlurBlurry:          formatFloat(cfg.BlurBands.Blurry),
		settingBlurSlightlyBlurry:  formatFloat(cfg.BlurBands.SlightlyBlurry),
		settingExposureSensitivity: formatFloat(cfg.ExposureSensitivity),
		settingNoiseThreshold:      formatFloat(cfg.NoiseThreshold),
		settingMaxTimeGapSeconds:   formatFloat(cfg.MaxTimeGap.Seconds()),
		settingSimilarityThreshold: formatFloat(cfg.SimilarityThreshold),
	}
	for key, value := range values {
		if err := db.SetSetting(key, value); err != nil {
			return fmt.Errorf("failed to persist setting %s: %w", key, err)
		}
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
