// Package config reads gnomeview settings from the environment. A .env file
// in the working directory is loaded first when present.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Environment variables that the configuration reads.
const (
	EnvPort          = "GNOMEVIEW_PORT"
	EnvDB            = "GNOMEVIEW_DB"
	EnvURL           = "GNOMEVIEW_URL"
	EnvFrameInterval = "GNOMEVIEW_FRAME_INTERVAL"
	EnvLogLevel      = "GNOMEVIEW_LOG_LEVEL"
	EnvScenario      = "GNOMEVIEW_SCENARIO"
)

// Config holds all gnomeview settings.
type Config struct {
	// Port is where the runner service listens. Ports below 1000 mean a
	// random port.
	Port int

	// DB is the SQLite file, without extension, that steps are recorded
	// in. Empty picks a unique name.
	DB string

	// URL is the runner service that the viewer fetches from.
	URL string

	// FrameInterval is the time between two displayed steps.
	FrameInterval time.Duration

	LogLevel zerolog.Level

	// Scenario is an optional YAML scenario file for new runs.
	Scenario string
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Port:          0,
		URL:           "http://localhost:8080",
		FrameInterval: 500 * time.Millisecond,
		LogLevel:      zerolog.InfoLevel,
	}
}

// Load reads the .env file, if any, and the environment.
func Load() (Config, error) {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, errors.Wrap(err, "loading .env")
	}

	return FromEnv(os.LookupEnv)
}

// FromEnv builds a configuration from an environment lookup function.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	c := Default()

	if v, ok := lookup(EnvPort); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return c, errors.Wrapf(err, "%s", EnvPort)
		}

		c.Port = port
	}

	if v, ok := lookup(EnvDB); ok {
		c.DB = v
	}

	if v, ok := lookup(EnvURL); ok {
		c.URL = v
	}

	if v, ok := lookup(EnvFrameInterval); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return c, errors.Wrapf(err, "%s", EnvFrameInterval)
		}

		c.FrameInterval = d
	}

	if v, ok := lookup(EnvLogLevel); ok {
		level, err := zerolog.ParseLevel(v)
		if err != nil {
			return c, errors.Wrapf(err, "%s", EnvLogLevel)
		}

		c.LogLevel = level
	}

	if v, ok := lookup(EnvScenario); ok {
		c.Scenario = v
	}

	return c, nil
}
