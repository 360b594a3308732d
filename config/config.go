// Package config loads and validates formwatch configuration. Every
// product-tuned threshold in the pipeline lives here so operators can
// re-tune against their own extraction-noise samples instead of editing
// code.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the change-detection core.
type Config struct {
	General    GeneralConfig    `mapstructure:"general"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Matcher    MatcherConfig    `mapstructure:"matcher"`
	Crawler    CrawlerConfig    `mapstructure:"crawler"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

// GeneralConfig contains process-wide settings.
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ClassifierConfig tunes change-classification noise suppression.
type ClassifierConfig struct {
	// PageSimilarityThreshold suppresses per-page hash mismatches whose
	// normalized text similarity is at or above it.
	PageSimilarityThreshold float64 `mapstructure:"page_similarity_threshold"`
	// DocSimilarityThreshold suppresses whole-document text-hash
	// mismatches the same way.
	DocSimilarityThreshold float64 `mapstructure:"doc_similarity_threshold"`
	DiffPreviewLines       int     `mapstructure:"diff_preview_lines"`
}

func (c ClassifierConfig) Validate() error {
	if c.PageSimilarityThreshold <= 0 || c.PageSimilarityThreshold > 1 {
		return fmt.Errorf("classifier.page_similarity_threshold must be in (0,1], got %v", c.PageSimilarityThreshold)
	}
	if c.DocSimilarityThreshold <= 0 || c.DocSimilarityThreshold > 1 {
		return fmt.Errorf("classifier.doc_similarity_threshold must be in (0,1], got %v", c.DocSimilarityThreshold)
	}
	if c.DiffPreviewLines < 0 {
		return errors.New("classifier.diff_preview_lines cannot be negative")
	}
	return nil
}

// MatcherConfig tunes identity matching.
type MatcherConfig struct {
	TitleSimilarityThreshold float64           `mapstructure:"title_similarity_threshold"`
	HighSimilarityThreshold  float64           `mapstructure:"high_similarity_threshold"`
	LowSimilarityThreshold   float64           `mapstructure:"low_similarity_threshold"`
	FormNumberPatterns       []string          `mapstructure:"form_number_patterns"`
	OracleTimeout            time.Duration     `mapstructure:"oracle_timeout"`
	Confidence               ConfidenceWeights `mapstructure:"confidence"`
}

// ConfidenceWeights names the confidence attached to each decision path.
type ConfidenceWeights struct {
	TitleAndNumber float64 `mapstructure:"title_and_number"`
	TitleOnly      float64 `mapstructure:"title_only"`
	NumberMatch    float64 `mapstructure:"number_match"`
	Renamed        float64 `mapstructure:"renamed"`
	NewForm        float64 `mapstructure:"new_form"`
}

func (m MatcherConfig) Validate() error {
	for name, v := range map[string]float64{
		"matcher.title_similarity_threshold": m.TitleSimilarityThreshold,
		"matcher.high_similarity_threshold":  m.HighSimilarityThreshold,
		"matcher.low_similarity_threshold":   m.LowSimilarityThreshold,
	} {
		if v <= 0 || v > 1 {
			return fmt.Errorf("%s must be in (0,1], got %v", name, v)
		}
	}
	if m.LowSimilarityThreshold >= m.HighSimilarityThreshold {
		return fmt.Errorf("matcher.low_similarity_threshold (%v) must be below high_similarity_threshold (%v)",
			m.LowSimilarityThreshold, m.HighSimilarityThreshold)
	}
	if m.OracleTimeout <= 0 {
		return errors.New("matcher.oracle_timeout must be positive")
	}
	return nil
}

// CrawlerConfig tunes the relocation crawler budgets and politeness.
type CrawlerConfig struct {
	MaxPages                int           `mapstructure:"max_pages"`
	MaxDepth                int           `mapstructure:"max_depth"`
	RequestTimeout          time.Duration `mapstructure:"request_timeout"`
	PolitenessDelay         time.Duration `mapstructure:"politeness_delay"`
	UserAgent               string        `mapstructure:"user_agent"`
	FilenameSimilarityFloor float64       `mapstructure:"filename_similarity_floor"`
	Workers                 int           `mapstructure:"workers"`
}

func (c CrawlerConfig) Validate() error {
	if c.MaxPages < 0 {
		return errors.New("crawler.max_pages cannot be negative")
	}
	if c.MaxDepth < 0 {
		return errors.New("crawler.max_depth cannot be negative")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("crawler.request_timeout must be positive")
	}
	if c.FilenameSimilarityFloor <= 0 || c.FilenameSimilarityFloor > 1 {
		return fmt.Errorf("crawler.filename_similarity_floor must be in (0,1], got %v", c.FilenameSimilarityFloor)
	}
	if c.Workers <= 0 {
		return errors.New("crawler.workers must be positive")
	}
	return nil
}

// TelemetryConfig controls the optional metrics listener.
type TelemetryConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	MetricsPort int  `mapstructure:"metrics_port"`
}

func (t TelemetryConfig) Validate() error {
	if t.Enabled && t.MetricsPort <= 0 {
		return errors.New("telemetry.metrics_port must be > 0 when telemetry is enabled")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.debug", false)
	v.SetDefault("general.log_level", "info")

	v.SetDefault("classifier.page_similarity_threshold", 0.995)
	v.SetDefault("classifier.doc_similarity_threshold", 0.995)
	v.SetDefault("classifier.diff_preview_lines", 20)

	v.SetDefault("matcher.title_similarity_threshold", 0.90)
	v.SetDefault("matcher.high_similarity_threshold", 0.85)
	v.SetDefault("matcher.low_similarity_threshold", 0.30)
	v.SetDefault("matcher.oracle_timeout", 10*time.Second)
	v.SetDefault("matcher.confidence.title_and_number", 0.98)
	v.SetDefault("matcher.confidence.title_only", 0.92)
	v.SetDefault("matcher.confidence.number_match", 0.95)
	v.SetDefault("matcher.confidence.renamed", 0.90)
	v.SetDefault("matcher.confidence.new_form", 0.90)

	v.SetDefault("crawler.max_pages", 30)
	v.SetDefault("crawler.max_depth", 3)
	v.SetDefault("crawler.request_timeout", 15*time.Second)
	v.SetDefault("crawler.politeness_delay", 500*time.Millisecond)
	v.SetDefault("crawler.user_agent", "formwatch-relocation/1.0 (+https://formwatch.dev)")
	v.SetDefault("crawler.filename_similarity_floor", 0.6)
	v.SetDefault("crawler.workers", 4)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.metrics_port", 9205)
}

// Load reads configuration from the given YAML file, or from config.yaml in
// the working directory / ./config when path is empty. A missing default
// file is fine; defaults plus FORMWATCH_* environment overrides apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("FORMWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	for _, validate := range []func() error{
		cfg.Classifier.Validate,
		cfg.Matcher.Validate,
		cfg.Crawler.Validate,
		cfg.Telemetry.Validate,
	} {
		if err := validate(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}
