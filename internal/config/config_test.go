package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesOnlyPresentKeys(t *testing.T) {
	path := writeFile(t, "config.yaml", `
output: out/feed.json
ledger: ""
dedup:
  window: 12h
verify:
  scheme: weighted
  weights:
    Reuters: 0.7
geocoder:
  provider: chain
  places:
    - name: Springfield
      lat: 39.8
      lon: -89.6
      iso2: us
feed:
  retention: 720h
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "out/feed.json", cfg.Output)
	assert.Empty(t, cfg.Ledger)
	assert.Equal(t, 12*time.Hour, cfg.Dedup.Window)
	assert.Equal(t, 0.5, cfg.Dedup.Overlap)
	assert.Equal(t, SchemeWeighted, cfg.Verify.Scheme)
	assert.Equal(t, 0.7, cfg.Verify.Weights["Reuters"])
	assert.Equal(t, ProviderChain, cfg.Geocoder.Provider)
	require.Len(t, cfg.Geocoder.Places, 1)
	assert.Equal(t, "Springfield", cfg.Geocoder.Places[0].Name)
	assert.Equal(t, 720*time.Hour, cfg.Feed.Retention)
	assert.Equal(t, PolicySkip, cfg.Neutrality.Policy)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", "dedup: [unterminated")
	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"policy", func(c *Config) { c.Neutrality.Policy = "drop" }, "neutrality.policy"},
		{"scheme", func(c *Config) { c.Verify.Scheme = "magic" }, "verify.scheme"},
		{"provider", func(c *Config) { c.Geocoder.Provider = "google" }, "geocoder.provider"},
		{"window", func(c *Config) { c.Dedup.Window = 0 }, "dedup.window"},
		{"overlap", func(c *Config) { c.Dedup.Overlap = 1.5 }, "dedup.overlap"},
		{"output", func(c *Config) { c.Output = "" }, "output"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
	assert.NoError(t, Default().Validate())
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvGeocoderEndpoint, "http://localhost:8080")
	t.Setenv(EnvLogLevel, "debug")
	cfg := Default()
	cfg.ApplyEnv()
	assert.Equal(t, "http://localhost:8080", cfg.Geocoder.Endpoint)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "material-news/1.0", cfg.Geocoder.UserAgent)
}

func TestLoadEnv(t *testing.T) {
	require.NoError(t, LoadEnv(filepath.Join(t.TempDir(), ".env")))

	path := writeFile(t, ".env", EnvGeocoderUserAgent+"=tester/2.0\n")
	t.Setenv(EnvGeocoderUserAgent, "")
	os.Unsetenv(EnvGeocoderUserAgent)
	require.NoError(t, LoadEnv(path))
	assert.Equal(t, "tester/2.0", os.Getenv(EnvGeocoderUserAgent))
}

func TestParseSourcesKeepsDocumentOrder(t *testing.T) {
	srcs, err := ParseSources([]byte(`
feeds:
  zeta: https://zeta.example/rss
  alpha: https://alpha.example/rss
hazards:
  usgs: https://earthquake.usgs.gov/feed.atom
`))
	require.NoError(t, err)
	assert.Equal(t, []Source{
		{Name: "zeta", URL: "https://zeta.example/rss", Kind: KindFeed},
		{Name: "alpha", URL: "https://alpha.example/rss", Kind: KindFeed},
		{Name: "usgs", URL: "https://earthquake.usgs.gov/feed.atom", Kind: KindHazard},
	}, srcs)
}

func TestParseSourcesMissingSections(t *testing.T) {
	srcs, err := ParseSources([]byte("feeds:\n  a: https://a.example\n"))
	require.NoError(t, err)
	assert.Len(t, srcs, 1)

	srcs, err = ParseSources([]byte("hazards:\n"))
	require.NoError(t, err)
	assert.Empty(t, srcs)
}

func TestParseSourcesRejectsList(t *testing.T) {
	_, err := ParseSources([]byte("feeds:\n  - https://a.example\n"))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLoadSourcesMissingFile(t *testing.T) {
	srcs, err := LoadSources(filepath.Join(t.TempDir(), "hazards.yaml"))
	require.NoError(t, err)
	assert.Empty(t, srcs)
}
