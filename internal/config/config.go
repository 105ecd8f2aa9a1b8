package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"geminiclient/internal/gemini"

	"gopkg.in/yaml.v3"
)

// Config represents the structure of the configuration file.
type Config struct {
	Server struct {
		Port   int    `yaml:"port"`
		Host   string `yaml:"host"`
		DBPath string `yaml:"db_path"`
	} `yaml:"server"`
	Gemini struct {
		// APIKey may be left empty, GEMINI_API_KEY is used then.
		APIKey  string        `yaml:"api_key"`
		Model   string        `yaml:"model"`
		Proxy   string        `yaml:"proxy"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"gemini"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Load reads a YAML file from the given path and unmarshals it into a Config struct.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// LoadOptional is like Load, but a missing file yields the defaults.
func LoadOptional(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Parse(nil)
	}
	return cfg, err
}

// Parse unmarshals YAML data and fills in defaults for anything left unset.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.DBPath == "" {
		c.Server.DBPath = "geminiclient.db"
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = gemini.DefaultModel
	}
	if c.Gemini.Timeout == 0 {
		c.Gemini.Timeout = 60 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

func (c *Config) validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Gemini.Timeout < 0 {
		return fmt.Errorf("invalid gemini timeout %s", c.Gemini.Timeout)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format %q: want json or text", c.Log.Format)
	}
	return nil
}
