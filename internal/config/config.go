// Package config loads the pipeline configuration and the feed source
// lists.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jinxlover/material-news/internal/geocode"
)

// ErrInvalid marks a configuration that cannot be used.
var ErrInvalid = errors.New("invalid configuration")

// Config is the pipeline configuration.
type Config struct {
	Output   string `yaml:"output"`    // feed file
	Ledger   string `yaml:"ledger"`    // SQLite ledger, empty disables
	EventLog string `yaml:"event_log"` // JSONL run log, empty disables
	Sources  string `yaml:"sources"`   // wires file
	Hazards  string `yaml:"hazards"`   // hazards file
	Workers  int    `yaml:"workers"`   // 0 = NumCPU

	Fetch      FetchConfig      `yaml:"fetch"`
	Dedup      DedupConfig      `yaml:"dedup"`
	Verify     VerifyConfig     `yaml:"verify"`
	Geocoder   GeocoderConfig   `yaml:"geocoder"`
	Neutrality NeutralityConfig `yaml:"neutrality"`
	Feed       FeedConfig       `yaml:"feed"`
	Log        LogConfig        `yaml:"log"`
}

type FetchConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	Concurrency int           `yaml:"concurrency"`
	UserAgent   string        `yaml:"user_agent"`
}

type DedupConfig struct {
	Window  time.Duration `yaml:"window"`
	Overlap float64       `yaml:"overlap"`
}

type VerifyConfig struct {
	Scheme        string             `yaml:"scheme"` // baseline | weighted
	Weights       map[string]float64 `yaml:"weights"`
	DefaultWeight float64            `yaml:"default_weight"`
}

type GeocoderConfig struct {
	Provider  string          `yaml:"provider"` // none | static | nominatim | chain
	Endpoint  string          `yaml:"endpoint"`
	Timeout   time.Duration   `yaml:"timeout"`
	Rate      float64         `yaml:"rate"` // requests per second
	UserAgent string          `yaml:"user_agent"`
	Places    []geocode.Place `yaml:"places"`
}

type NeutralityConfig struct {
	Policy   string   `yaml:"policy"`   // skip | hold
	Denylist []string `yaml:"denylist"` // added to the built-in words
}

type FeedConfig struct {
	Retention time.Duration `yaml:"retention"` // 0 keeps everything
}

type LogConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

// Policies and schemes.
const (
	PolicySkip = "skip"
	PolicyHold = "hold"

	SchemeBaseline = "baseline"
	SchemeWeighted = "weighted"

	ProviderNone      = "none"
	ProviderStatic    = "static"
	ProviderNominatim = "nominatim"
	ProviderChain     = "chain"
)

// Default returns the configuration used for absent keys.
func Default() *Config {
	return &Config{
		Output:   "data/events.json",
		Ledger:   "data/ledger.db",
		EventLog: "data/events.log.jsonl",
		Sources:  "config/wires.yaml",
		Hazards:  "config/hazards.yaml",
		Fetch: FetchConfig{
			Timeout:     20 * time.Second,
			Concurrency: 8,
			UserAgent:   "material-news/1.0",
		},
		Dedup: DedupConfig{
			Window:  24 * time.Hour,
			Overlap: 0.5,
		},
		Verify: VerifyConfig{
			Scheme:        SchemeBaseline,
			DefaultWeight: 0.4,
		},
		Geocoder: GeocoderConfig{
			Provider:  ProviderStatic,
			Endpoint:  geocode.DefaultNominatimEndpoint,
			Timeout:   geocode.DefaultTimeout,
			Rate:      1,
			UserAgent: "material-news/1.0",
		},
		Neutrality: NeutralityConfig{Policy: PolicySkip},
		Log:        LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults. A missing file yields the defaults;
// malformed YAML or invalid values are errors.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrInvalid, path, err)
			}
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerations and ranges.
func (c *Config) Validate() error {
	var problems []string
	switch c.Neutrality.Policy {
	case PolicySkip, PolicyHold:
	default:
		problems = append(problems, fmt.Sprintf("neutrality.policy %q (want skip or hold)", c.Neutrality.Policy))
	}
	switch c.Verify.Scheme {
	case SchemeBaseline, SchemeWeighted:
	default:
		problems = append(problems, fmt.Sprintf("verify.scheme %q (want baseline or weighted)", c.Verify.Scheme))
	}
	switch c.Geocoder.Provider {
	case ProviderNone, ProviderStatic, ProviderNominatim, ProviderChain:
	default:
		problems = append(problems, fmt.Sprintf("geocoder.provider %q", c.Geocoder.Provider))
	}
	if c.Dedup.Window <= 0 {
		problems = append(problems, "dedup.window must be positive")
	}
	if c.Dedup.Overlap <= 0 || c.Dedup.Overlap > 1 {
		problems = append(problems, "dedup.overlap must be in (0,1]")
	}
	if c.Output == "" {
		problems = append(problems, "output is required")
	}
	if c.Workers < 0 || c.Fetch.Concurrency < 0 {
		problems = append(problems, "workers and fetch.concurrency must not be negative")
	}
	if c.Feed.Retention < 0 {
		problems = append(problems, "feed.retention must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// Environment overrides.
const (
	EnvGeocoderEndpoint  = "MATERIAL_NEWS_GEOCODER_ENDPOINT"
	EnvGeocoderUserAgent = "MATERIAL_NEWS_GEOCODER_USER_AGENT"
	EnvLogLevel          = "MATERIAL_NEWS_LOG_LEVEL"
	EnvOutput            = "MATERIAL_NEWS_OUTPUT"
)

// LoadEnv loads a .env file into the process environment without
// overriding variables already set. A missing file is not an error.
func LoadEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides file values from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvGeocoderEndpoint); v != "" {
		c.Geocoder.Endpoint = v
	}
	if v := os.Getenv(EnvGeocoderUserAgent); v != "" {
		c.Geocoder.UserAgent = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvOutput); v != "" {
		c.Output = v
	}
}
