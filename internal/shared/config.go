package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Backend     BackendConfig     `toml:"backend"`
	Processor   ProcessorConfig   `toml:"processor"`
	Venue       VenueConfig       `toml:"venue"`
	Database    DatabaseConfig    `toml:"database"`
	Session     SessionConfig     `toml:"session"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
}

// BackendConfig contains the venue account/payment backend settings.
type BackendConfig struct {
	BaseURL string `toml:"base_url"`
}

// ProcessorConfig contains the card processor settings.
type ProcessorConfig struct {
	PublishableKey string `toml:"publishable_key"`
}

// VenueConfig contains kiosk placement settings.
//
// The kiosk terminal has no GPS; its coordinates are part of the install.
// OverrideProximity forces the proximity gate to pass for controlled
// demonstrations and is logged distinctly from a real pass.
type VenueConfig struct {
	Latitude          float64 `toml:"latitude"`
	Longitude         float64 `toml:"longitude"`
	OverrideProximity bool    `toml:"override_proximity"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// SessionConfig contains jukebox session tuning.
type SessionConfig struct {
	PollPeriodMS     int `toml:"poll_period_ms"`
	SearchDebounceMS int `toml:"search_debounce_ms"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, ErrInvalidConfig)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
