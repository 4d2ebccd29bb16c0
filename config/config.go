// Package config loads the service configuration from YAML with environment
// overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"

	"heartguard/logging"
)

type Config struct {
	Models    ModelsConfig    `yaml:"models"`
	Http      HttpConfig      `yaml:"http"`
	Log       logging.Config  `yaml:"log"`
	Consensus ConsensusConfig `yaml:"consensus"`
}

type ModelsConfig struct {
	// Dir is the artifact directory. Empty means the executable's directory.
	Dir string `yaml:"dir"`
	// Files maps a model name to an artifact file name inside Dir.
	Files map[string]string `yaml:"files"`
	// Watch logs a warning when an artifact changes after startup.
	Watch bool `yaml:"watch"`
}

type HttpConfig struct {
	Port           int           `yaml:"port"`
	Timeout        time.Duration `yaml:"timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
}

type ConsensusConfig struct {
	MemoSize int `yaml:"memo_size"`
}

func Default() *Config {
	return &Config{
		Http: HttpConfig{
			Port:           8501,
			Timeout:        30 * time.Second,
			AllowedOrigins: []string{"*"},
			MaxUploadBytes: 32 << 20,
		},
		Log:       logging.Config{Level: "info"},
		Consensus: ConsensusConfig{MemoSize: 1024},
	}
}

// Load reads path over the defaults and applies environment overrides. An
// empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer file.Close()

		if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("HEARTGUARD_MODELS_DIR"); v != "" {
		c.Models.Dir = v
	}
	if v := os.Getenv("HEARTGUARD_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("HEARTGUARD_HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HEARTGUARD_HTTP_PORT: %w", err)
		}
		c.Http.Port = port
	}
	return nil
}
