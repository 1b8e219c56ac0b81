// Package config loads server settings from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/mcdev12/bidroom/go/internal/dbconfig"
	"github.com/mcdev12/bidroom/go/internal/eventbus"
	"github.com/mcdev12/bidroom/go/internal/models"
)

type Config struct {
	Server   ServerConfig         `yaml:"server"`
	Log      LogConfig            `yaml:"log"`
	Auction  models.AuctionConfig `yaml:"auction"`
	Rooms    RoomsConfig          `yaml:"rooms"`
	Catalog  CatalogConfig        `yaml:"catalog"`
	EventBus eventbus.Config      `yaml:"event_bus"`
	NATS     NATSConfig           `yaml:"nats"`
	Archive  ArchiveConfig        `yaml:"archive"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

type RoomsConfig struct {
	IdleTTL         time.Duration `yaml:"idle_ttl"`
	JanitorInterval time.Duration `yaml:"janitor_interval"`
}

// CatalogConfig points at the lot file or URL used when a host loads a catalog
// without uploading one. An empty path disables the default catalog.
type CatalogConfig struct {
	Path     string   `yaml:"path"`
	SetOrder []string `yaml:"set_order"`
}

type NATSConfig struct {
	Enabled                  bool `yaml:"enabled"`
	eventbus.JetStreamConfig `yaml:",inline"`
}

type ArchiveConfig struct {
	Enabled bool            `yaml:"enabled"`
	DB      dbconfig.Config `yaml:"db"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            "8080",
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Log:      LogConfig{Level: "info", Console: true},
		Auction:  models.DefaultAuctionConfig(),
		Rooms:    RoomsConfig{IdleTTL: 30 * time.Minute, JanitorInterval: time.Minute},
		EventBus: eventbus.DefaultConfig(),
		NATS:     NATSConfig{JetStreamConfig: eventbus.DefaultJetStreamConfig()},
		Archive:  ArchiveConfig{DB: dbconfig.Default()},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Catalog.Path = getEnv("CATALOG_PATH", c.Catalog.Path)
	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		c.Server.AllowedOrigins = strings.Split(origins, ",")
	}

	var errs []error
	var err error
	if c.NATS.Enabled, err = getEnvAsBool("NATS_ENABLED", c.NATS.Enabled); err != nil {
		errs = append(errs, err)
	}
	if c.Archive.Enabled, err = getEnvAsBool("ARCHIVE_ENABLED", c.Archive.Enabled); err != nil {
		errs = append(errs, err)
	}
	if c.Rooms.IdleTTL, err = getEnvAsDuration("ROOM_IDLE_TTL", c.Rooms.IdleTTL); err != nil {
		errs = append(errs, err)
	}
	c.Archive.DB.ApplyEnv()
	return errors.Join(errs...)
}

// Validate checks settings that would otherwise fail at first use.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if _, err := c.Log.ZerologLevel(); err != nil {
		return err
	}
	if err := c.Auction.Validate(); err != nil {
		return fmt.Errorf("auction: %w", err)
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		return errors.New("nats.url is required when nats is enabled")
	}
	return nil
}

// ZerologLevel parses the configured level.
func (l LogConfig) ZerologLevel() (zerolog.Level, error) {
	if l.Level == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(l.Level))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: %w", l.Level, err)
	}
	return level, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
