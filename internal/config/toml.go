// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Exam   ExamConfig   `toml:"exam"`
	Server ServerConfig `toml:"server"`
	Store  StoreConfig  `toml:"store"`
	Log    LogConfig    `toml:"log"`
	Serve  ServeConfig  `toml:"serve"`
}

// ExamConfig maps exam-taking settings.
type ExamConfig struct {
	Year               *int      `toml:"year"`
	Shift              *string   `toml:"shift"`
	Duration           *Duration `toml:"duration"`
	CheckpointInterval *Duration `toml:"checkpoint-interval"`
}

// ServerConfig maps the attempt service connection.
type ServerConfig struct {
	URL   *string `toml:"url"`
	Token *string `toml:"token"`
}

// StoreConfig selects where answer snapshots live.
type StoreConfig struct {
	Backend  *string   `toml:"backend"`
	Path     *string   `toml:"path"`
	RedisURL *string   `toml:"redis-url"`
	RedisTTL *Duration `toml:"redis-ttl"`
}

// LogConfig maps logging settings.
type LogConfig struct {
	Level  *string `toml:"level"`
	Format *string `toml:"format"`
}

// ServeConfig maps the practice server settings.
type ServeConfig struct {
	Addr           *string   `toml:"addr"`
	Mode           *string   `toml:"mode"`
	AllowedOrigins []string  `toml:"allowed-origins"`
	PerSubject     *int      `toml:"per-subject"`
	Duration       *Duration `toml:"duration"`
}

// Duration is a time.Duration written as "3h" or "30s" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}
