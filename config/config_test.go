package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 0.995, cfg.Classifier.PageSimilarityThreshold)
	assert.Equal(t, 0.995, cfg.Classifier.DocSimilarityThreshold)
	assert.Equal(t, 20, cfg.Classifier.DiffPreviewLines)

	assert.Equal(t, 0.90, cfg.Matcher.TitleSimilarityThreshold)
	assert.Equal(t, 0.85, cfg.Matcher.HighSimilarityThreshold)
	assert.Equal(t, 0.30, cfg.Matcher.LowSimilarityThreshold)
	assert.Equal(t, 10*time.Second, cfg.Matcher.OracleTimeout)
	assert.Equal(t, 0.98, cfg.Matcher.Confidence.TitleAndNumber)
	assert.Equal(t, 0.95, cfg.Matcher.Confidence.NumberMatch)

	assert.Equal(t, 30, cfg.Crawler.MaxPages)
	assert.Equal(t, 3, cfg.Crawler.MaxDepth)
	assert.Equal(t, 500*time.Millisecond, cfg.Crawler.PolitenessDelay)
	assert.Equal(t, 0.6, cfg.Crawler.FilenameSimilarityFloor)
	assert.Equal(t, 4, cfg.Crawler.Workers)

	assert.False(t, cfg.Telemetry.Enabled)
}

func TestLoadFileOverrides(t *testing.T) {
	path := writeConfig(t, `
classifier:
  page_similarity_threshold: 0.98
crawler:
  max_pages: 5
  politeness_delay: 50ms
matcher:
  confidence:
    title_only: 0.8
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.98, cfg.Classifier.PageSimilarityThreshold)
	assert.Equal(t, 5, cfg.Crawler.MaxPages)
	assert.Equal(t, 50*time.Millisecond, cfg.Crawler.PolitenessDelay)
	assert.Equal(t, 0.8, cfg.Matcher.Confidence.TitleOnly)
	// Untouched keys keep their defaults.
	assert.Equal(t, 0.995, cfg.Classifier.DocSimilarityThreshold)
	assert.Equal(t, 3, cfg.Crawler.MaxDepth)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("FORMWATCH_CRAWLER_MAX_PAGES", "7")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Crawler.MaxPages)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"threshold above one", "classifier:\n  page_similarity_threshold: 1.5\n"},
		{"inverted bands", "matcher:\n  low_similarity_threshold: 0.9\n  high_similarity_threshold: 0.4\n"},
		{"negative pages", "crawler:\n  max_pages: -1\n"},
		{"zero workers", "crawler:\n  workers: 0\n"},
		{"telemetry without port", "telemetry:\n  enabled: true\n  metrics_port: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}
