package config

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
)

// Thresholds are the p_lower_pct cutoffs for colony status classification.
// They are organizational policy, not engine constants.
type Thresholds struct {
	Managed    int `mapstructure:"managed"`
	InProgress int `mapstructure:"in_progress"`
	NeedsWork  int `mapstructure:"needs_work"`
}

// Engine is the immutable configuration threaded through the estimator,
// classifier, vital events model and forecaster.
type Engine struct {
	HTTPAddr    string `mapstructure:"http_addr"`
	PostgresURL string `mapstructure:"postgres_url"`
	OverpassURL string `mapstructure:"overpass_url"`
	ObsStoreURL string `mapstructure:"obs_store_url"`

	Status Thresholds `mapstructure:"status"`

	// Estimator policy.
	EstimateCeiling   int `mapstructure:"estimate_ceiling"`
	AISuspectCeiling  int `mapstructure:"ai_suspect_ceiling"`
	RecencyWindowDays int `mapstructure:"recency_window_days"`

	// Vital events policy.
	LactationOffsetDays   int `mapstructure:"lactation_offset_days"`
	OlderKittenOffsetDays int `mapstructure:"older_kitten_offset_days"`
	PregnancyTermDays     int `mapstructure:"pregnancy_term_days"`
	PregnancyStaleDays    int `mapstructure:"pregnancy_stale_days"`
	FutureBirthBufferDays int `mapstructure:"future_birth_buffer_days"`

	// Clustering defaults used when the caller supplies none.
	DefaultEpsilonM  float64 `mapstructure:"default_epsilon_m"`
	DefaultMinPoints int     `mapstructure:"default_min_points"`
	SiteContextM     float64 `mapstructure:"site_context_m"`

	// Reporting policy.
	StaleEstimateDays int `mapstructure:"stale_estimate_days"`

	// Runtime.
	EstimateWorkers int           `mapstructure:"estimate_workers"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
	CacheCleanup    time.Duration `mapstructure:"cache_cleanup"`
}

// Load reads configuration from an optional beacon.yaml alongside
// BEACON_-prefixed environment variables, applying defaults for everything
// unset.
func Load() (Engine, error) {
	v := viper.New()
	v.SetConfigName("beacon")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/beacon")

	v.SetEnvPrefix("beacon")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Engine{}, errors.Wrap(err, "reading config file")
		}
		// No config file is fine; env vars and defaults apply.
	}

	var cfg Engine
	if err := v.Unmarshal(&cfg); err != nil {
		return Engine{}, errors.Wrap(err, "unmarshaling config")
	}
	return cfg, nil
}

// Default returns the built-in configuration, used directly by tests.
func Default() Engine {
	v := viper.New()
	setDefaults(v)
	var cfg Engine
	if err := v.Unmarshal(&cfg); err != nil {
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("postgres_url", "postgres://localhost/beacon?sslmode=disable")
	v.SetDefault("overpass_url", "https://overpass-api.de/api/interpreter")
	v.SetDefault("obs_store_url", "")

	v.SetDefault("status.managed", 75)
	v.SetDefault("status.in_progress", 50)
	v.SetDefault("status.needs_work", 25)

	v.SetDefault("estimate_ceiling", 500)
	v.SetDefault("ai_suspect_ceiling", 100)
	v.SetDefault("recency_window_days", 365)

	v.SetDefault("lactation_offset_days", 42)
	v.SetDefault("older_kitten_offset_days", 90)
	v.SetDefault("pregnancy_term_days", 60)
	v.SetDefault("pregnancy_stale_days", 60)
	v.SetDefault("future_birth_buffer_days", 7)

	v.SetDefault("default_epsilon_m", 500.0)
	v.SetDefault("default_min_points", 3)
	v.SetDefault("site_context_m", 250.0)

	v.SetDefault("stale_estimate_days", 180)

	v.SetDefault("estimate_workers", 8)
	v.SetDefault("cache_ttl", 15*time.Minute)
	v.SetDefault("cache_cleanup", 30*time.Minute)
}
