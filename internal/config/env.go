package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Environment variable names.
const (
	EnvServer    = "TUIEXAM_SERVER"
	EnvToken     = "TUIEXAM_TOKEN"
	EnvRedisURL  = "TUIEXAM_REDIS_URL"
	EnvLogLevel  = "TUIEXAM_LOG_LEVEL"
	EnvLogFormat = "TUIEXAM_LOG_FORMAT"
	EnvServeAddr = "TUIEXAM_SERVE_ADDR"
)

// Env holds settings taken from the process environment. Empty fields were
// not set.
type Env struct {
	Server    string
	Token     string
	RedisURL  string
	LogLevel  string
	LogFormat string
	ServeAddr string
}

// LoadEnv reads dotenv files into the process environment, then returns the
// tuiexam variables. Missing files are ignored and variables already set in
// the environment are never overwritten.
func LoadEnv(files ...string) Env {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		_ = godotenv.Load(f)
	}
	return Env{
		Server:    os.Getenv(EnvServer),
		Token:     os.Getenv(EnvToken),
		RedisURL:  os.Getenv(EnvRedisURL),
		LogLevel:  os.Getenv(EnvLogLevel),
		LogFormat: os.Getenv(EnvLogFormat),
		ServeAddr: os.Getenv(EnvServeAddr),
	}
}

// StringPtr returns nil for an empty value so Env fields can feed the same
// apply helpers as TOML pointers.
func StringPtr(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
