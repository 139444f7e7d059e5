package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	Console   ConsoleConfig   `toml:"console"`
	Feed      FeedConfig      `toml:"feed"`
	Worlds    WorldsConfig    `toml:"worlds"`
	Player    PlayerConfig    `toml:"player"`
	Scripting ScriptingConfig `toml:"scripting"`
	Logging   LoggingConfig   `toml:"logging"`
}

type ServerConfig struct {
	Name             string        `toml:"name"`
	TickRate         time.Duration `toml:"tick_rate"`
	AutosaveInterval time.Duration `toml:"autosave_interval"` // 0 disables autosave
}

type DatabaseConfig struct {
	Driver          string        `toml:"driver" env:"CLOVER_DB_DRIVER"` // "postgres" or "sqlite"
	DSN             string        `toml:"dsn" env:"CLOVER_DB_DSN"`       // sqlite: file path
	MaxOpenConns    int           `toml:"max_open_conns"`
	MaxIdleConns    int           `toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
}

type ConsoleConfig struct {
	Enabled      bool   `toml:"enabled"`
	BindAddress  string `toml:"bind_address" env:"CLOVER_CONSOLE_BIND"`
	InQueueSize  int    `toml:"in_queue_size"`
	OutQueueSize int    `toml:"out_queue_size"`
	MaxPerTick   int    `toml:"max_commands_per_tick"`
}

type FeedConfig struct {
	Enabled      bool          `toml:"enabled"`
	BindAddress  string        `toml:"bind_address" env:"CLOVER_FEED_BIND"`
	WriteTimeout time.Duration `toml:"write_timeout"`
}

type WorldsConfig struct {
	DataFile     string  `toml:"data_file"`
	DefaultWorld string  `toml:"default_world" env:"CLOVER_DEFAULT_WORLD"`
	Offset       float32 `toml:"offset"`
}

type PlayerConfig struct {
	Entrance        string     `toml:"entrance"` // entrance of the default world the player starts at
	CameraOffset    [3]float32 `toml:"camera_offset"`
	CameraLerpSpeed float32    `toml:"camera_lerp_speed"`
}

type ScriptingConfig struct {
	Dir string `toml:"dir"`
}

type LoggingConfig struct {
	Level  string `toml:"level" env:"CLOVER_LOG_LEVEL"`
	Format string `toml:"format" env:"CLOVER_LOG_FORMAT"` // "json" or "console"
}

// Load reads the TOML file at path over the defaults, then applies
// environment overrides.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes TOML bytes over the defaults and applies env overrides.
func Parse(raw []byte) (*Config, error) {
	cfg := defaults()
	if err := toml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.TickRate <= 0 {
		return fmt.Errorf("server.tick_rate must be positive")
	}
	if c.Server.AutosaveInterval < 0 {
		return fmt.Errorf("server.autosave_interval must not be negative")
	}
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("database.driver: unknown driver %q", c.Database.Driver)
	}
	if c.Worlds.Offset <= 0 {
		return fmt.Errorf("worlds.offset must be positive")
	}
	return nil
}

// AutosaveTicks converts the autosave interval to game ticks (0 = off).
func (c *Config) AutosaveTicks() int {
	if c.Server.AutosaveInterval <= 0 {
		return 0
	}
	n := int(c.Server.AutosaveInterval / c.Server.TickRate)
	if n < 1 {
		n = 1
	}
	return n
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Name:             "Clover",
			TickRate:         50 * time.Millisecond,
			AutosaveInterval: 5 * time.Minute,
		},
		Database: DatabaseConfig{
			Driver:          DriverSQLite,
			DSN:             "data/clover.db",
			MaxOpenConns:    8,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Console: ConsoleConfig{
			Enabled:      true,
			BindAddress:  "127.0.0.1:7070",
			InQueueSize:  32,
			OutQueueSize: 128,
			MaxPerTick:   8,
		},
		Feed: FeedConfig{
			Enabled:      false,
			BindAddress:  "127.0.0.1:7071",
			WriteTimeout: 5 * time.Second,
		},
		Worlds: WorldsConfig{
			DataFile:     "data/yaml/world_list.yaml",
			DefaultWorld: "island",
			Offset:       1000,
		},
		Player: PlayerConfig{
			Entrance:        "spawn",
			CameraOffset:    [3]float32{0, -300, 250},
			CameraLerpSpeed: 5,
		},
		Scripting: ScriptingConfig{
			Dir: "scripts",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
