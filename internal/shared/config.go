package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Library  LibraryConfig  `toml:"library"`
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
	Events   EventsConfig   `toml:"events"`
	Log      LogConfig      `toml:"log"`
}

// LibraryConfig controls where audio blobs live and how the songs directory is reconciled.
type LibraryConfig struct {
	SongsDir     string   `toml:"songs_dir" validate:"required"`
	Extensions   []string `toml:"extensions" validate:"required,min=1,dive,startswith=."`
	Watch        bool     `toml:"watch"`
	SweepOnStart bool     `toml:"sweep_on_start"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path" validate:"required"`
	MaxOpenConns int    `toml:"max_open_conns" validate:"gte=0"`
	MaxIdleConns int    `toml:"max_idle_conns" validate:"gte=0"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host        string  `toml:"host"`
	Port        int     `toml:"port" validate:"gte=1,lte=65535"`
	MaxUploadMB int64   `toml:"max_upload_mb" validate:"gte=1"`
	UploadRate  float64 `toml:"upload_rate" validate:"gte=0"`
}

// EventsConfig configures change notification fan-out. An empty RedisURL keeps events in-process.
type EventsConfig struct {
	RedisURL string `toml:"redis_url" validate:"omitempty,url"`
	Channel  string `toml:"channel"`
}

// LogConfig selects the log level and an optional log file.
type LogConfig struct {
	Level string `toml:"level" validate:"omitempty,oneof=debug info warn error"`
	File  string `toml:"file"`
}

// Addr returns the host:port pair the HTTP server listens on.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the values of [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
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
		return fmt.Errorf("config file already exists at %s: %w", path, ErrConflict)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
