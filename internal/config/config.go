// Package config handles configuration loading, validation, and persistence
// for the bbh-server relay.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

const (
	DefaultConfigDir  = "config"
	DefaultConfigFile = "config.json"
	DefaultGamePort   = 6123
	DefaultAPIPort    = 5000

	// LobbyName is the reserved room name for the permanent lobby.
	// The legacy client hardcodes "_" as the lobby identifier.
	LobbyName = "_"
)

// Config is the root configuration structure for bbh-server.
type Config struct {
	mu   sync.RWMutex
	path string

	GameData        GameData        `json:"game_data"`
	ApplicationData ApplicationData `json:"application_data"`
}

// GameData contains the relay server's game-facing configuration.
type GameData struct {
	// Listener
	Host string `json:"svr_host"`
	Port int    `json:"svr_port"`

	// Wire identity space. Slots are rendered as zero-padded 3-digit
	// identifiers, so MaxSlots must stay below 1000.
	MaxSlots int `json:"svr_max_slots"`

	// Rooms
	RoundLengthSec int `json:"room_round_length_sec"`

	// Persistence
	AccountsFile string `json:"accounts_file"`
	StatsDBPath  string `json:"stats_db_path"`
}

// ApplicationData contains supporting application configuration.
type ApplicationData struct {
	API      APIConfig     `json:"api"`
	MQTT     MQTTConfig    `json:"mqtt"`
	Logging  LoggingConfig `json:"logging"`
}

// APIConfig holds admin REST API settings.
type APIConfig struct {
	Enabled        bool     `json:"enabled"`
	Port           int      `json:"port"`
	AllowedOrigins []string `json:"allowed_origins"`
	RateLimitRPS   int      `json:"rate_limit_rps"`
}

// MQTTConfig holds MQTT telemetry settings.
type MQTTConfig struct {
	Enabled   bool   `json:"enabled"`
	BrokerURL string `json:"broker_url"`
	Port      int    `json:"port"`
	UseTLS    bool   `json:"use_tls"`
	CertFile  string `json:"cert_file"`
	KeyFile   string `json:"key_file"`
	ClientID  string `json:"client_id"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `json:"level"`
	Directory  string `json:"directory"`
	MaxBackups int    `json:"max_backups"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		GameData: GameData{
			Host:           "0.0.0.0",
			Port:           DefaultGamePort,
			MaxSlots:       999,
			RoundLengthSec: 600,
			AccountsFile:   "config/users.db",
			StatsDBPath:    "config/stats.db",
		},
		ApplicationData: ApplicationData{
			API: APIConfig{
				Enabled:      true,
				Port:         DefaultAPIPort,
				RateLimitRPS: 100,
			},
			MQTT: MQTTConfig{
				Enabled: false,
				Port:    8883,
				UseTLS:  true,
			},
			Logging: LoggingConfig{
				Level:      "info",
				Directory:  "logs",
				MaxBackups: 5,
			},
		},
	}
}

// Load reads configuration from a JSON file.
func Load(configDir string) (*Config, error) {
	configPath := filepath.Join(configDir, DefaultConfigFile)

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", configPath).Msg("config file not found, creating default")
			cfg := DefaultConfig()
			cfg.path = configPath
			if saveErr := cfg.Save(); saveErr != nil {
				return nil, fmt.Errorf("failed to save default config: %w", saveErr)
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig() // Start with defaults, then overlay
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	cfg.path = configPath
	log.Info().Str("path", configPath).Msg("configuration loaded")

	// Re-save config to persist any new default fields added in code updates.
	if saveErr := cfg.Save(); saveErr != nil {
		log.Warn().Err(saveErr).Msg("failed to re-save config with updated defaults")
	}

	return cfg, nil
}

// Save writes the current configuration to disk.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	log.Debug().Str("path", c.path).Msg("configuration saved")
	return nil
}

// GetGameData returns a copy of the game-facing configuration.
func (c *Config) GetGameData() GameData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.GameData
}

// SetGameData updates the game-facing configuration.
func (c *Config) SetGameData(data GameData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.GameData = data
}

// GetApplicationData returns a copy of the application data configuration.
func (c *Config) GetApplicationData() ApplicationData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ApplicationData
}

// Path returns the config file path.
func (c *Config) Path() string {
	return c.path
}
