// Package config loads psdscene settings from a TOML file and the environment.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	log "github.com/sirupsen/logrus"
)

//go:embed sample_config.toml
var sampleConfig string

const envPrefix = "PSDSCENE_"

type Server struct {
	Listen       string `toml:"listen"`
	PreviewWidth int    `toml:"preview_width"`
}

type Fonts struct {
	Dirs   []string `toml:"dirs"`
	System bool     `toml:"system"`
}

type Fetch struct {
	TimeoutSeconds int   `toml:"timeout_seconds"`
	MaxSize        int64 `toml:"max_size"`
}

type Logging struct {
	Level string `toml:"level"`
}

// Config is the full set of settings. Only Source affects what is rendered.
type Config struct {
	Source  string  `toml:"source"`
	Server  Server  `toml:"server"`
	Fonts   Fonts   `toml:"fonts"`
	Fetch   Fetch   `toml:"fetch"`
	Logging Logging `toml:"logging"`
}

func Default() Config {
	return Config{
		Server: Server{
			Listen: "127.0.0.1:8070",
		},
		Fonts: Fonts{
			System: true,
		},
		Fetch: Fetch{
			TimeoutSeconds: 60,
		},
		Logging: Logging{
			Level: "info",
		},
	}
}

// SampleConfig returns the annotated default configuration file
func SampleConfig() string {
	return sampleConfig
}

// Load reads the file at path when path is not empty, then applies the
// environment overrides. The result is not validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		log.WithField("path", path).Debug("config loaded")
	}
	cfg.applyEnv()
	cfg.normalize()
	return &cfg, nil
}

func (c *Config) applyEnv() {
	c.Source = envOr("SOURCE", c.Source)
	c.Server.Listen = envOr("LISTEN", c.Server.Listen)
	c.Server.PreviewWidth = envInt("PREVIEW_WIDTH", c.Server.PreviewWidth)
	c.Fetch.TimeoutSeconds = envInt("FETCH_TIMEOUT", c.Fetch.TimeoutSeconds)
	c.Logging.Level = envOr("LOG_LEVEL", c.Logging.Level)
	if v := os.Getenv(envPrefix + "FONT_DIRS"); v != "" {
		c.Fonts.Dirs = filepath.SplitList(v)
	}
}

func (c *Config) normalize() {
	c.Source = strings.TrimSpace(c.Source)
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	dirs := c.Fonts.Dirs[:0]
	for _, dir := range c.Fonts.Dirs {
		if dir = strings.TrimSpace(dir); dir != "" {
			dirs = append(dirs, filepath.Clean(dir))
		}
	}
	c.Fonts.Dirs = dirs
	if c.Fetch.TimeoutSeconds <= 0 {
		c.Fetch.TimeoutSeconds = 60
	}
	if c.Server.PreviewWidth < 0 {
		c.Server.PreviewWidth = 0
	}
}

// Validate ensures the configuration is usable
func (c *Config) Validate() error {
	if c.Source == "" {
		return errors.New("source must be set (argument, PSDSCENE_SOURCE or the config file)")
	}
	if c.Server.Listen == "" {
		return errors.New("server.listen must be set")
	}
	if c.Fetch.MaxSize < 0 {
		return errors.New("fetch.max_size must not be negative")
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

func (c *Config) LogLevel() (log.Level, error) {
	level, err := log.ParseLevel(c.Logging.Level)
	if err != nil {
		return log.InfoLevel, fmt.Errorf("logging.level: %w", err)
	}
	return level, nil
}

func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

func envOr(key, fallback string) string {
	if v := os.Getenv(envPrefix + key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(envPrefix + key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.WithField("variable", envPrefix+key).Warnf("ignoring non numeric value %q", v)
	}
	return fallback
}
