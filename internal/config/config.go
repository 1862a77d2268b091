// Package config loads tracescope server settings from an optional YAML
// file and TRACESCOPE_* environment variables.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rsclarke/tracescope/internal/models"
)

// Config holds the server settings.
type Config struct {
	DBPath           string        `yaml:"db_path"`
	APIPort          int           `yaml:"api_port"`
	APIToken         string        `yaml:"api_token"`
	Tenant           string        `yaml:"tenant"`
	GenerateInterval time.Duration `yaml:"generate_interval"`
	PromoteSegments  bool          `yaml:"promote_segments"`
	ClassifyWorkers  int           `yaml:"classify_workers"`
	DataClasses      []DataClass   `yaml:"data_classes"`
}

// DataClass is a custom detector declared in the config file.
type DataClass struct {
	Name       string `yaml:"name"`
	Regex      string `yaml:"regex"`
	StringOnly bool   `yaml:"string_only"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		DBPath:           "tracescope.db",
		APIPort:          8081,
		Tenant:           "default",
		GenerateInterval: 5 * time.Minute,
		ClassifyWorkers:  4,
	}
}

// Load reads path over the defaults, when path is not empty, then applies
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.DBPath = getEnv("TRACESCOPE_DB", c.DBPath)
	c.Tenant = getEnv("TRACESCOPE_TENANT", c.Tenant)
	c.APIToken = getEnv("TRACESCOPE_API_TOKEN", c.APIToken)

	var err error
	if c.APIPort, err = getEnvInt("TRACESCOPE_API_PORT", c.APIPort); err != nil {
		return err
	}
	if c.ClassifyWorkers, err = getEnvInt("TRACESCOPE_CLASSIFY_WORKERS", c.ClassifyWorkers); err != nil {
		return err
	}
	if v := os.Getenv("TRACESCOPE_GENERATE_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("TRACESCOPE_GENERATE_INTERVAL: %w", err)
		}
		c.GenerateInterval = d
	}
	if v := os.Getenv("TRACESCOPE_PROMOTE_SEGMENTS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("TRACESCOPE_PROMOTE_SEGMENTS: %w", err)
		}
		c.PromoteSegments = b
	}
	return nil
}

// Validate checks that the settings are usable.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("api_port %d out of range", c.APIPort)
	}
	if c.Tenant == "" {
		return fmt.Errorf("tenant is required")
	}
	if c.GenerateInterval <= 0 {
		return fmt.Errorf("generate_interval must be positive")
	}
	seen := make(map[string]bool, len(c.DataClasses))
	for _, dc := range c.DataClasses {
		if dc.Name == "" {
			return fmt.Errorf("data class name is required")
		}
		if seen[dc.Name] {
			return fmt.Errorf("duplicate data class %q", dc.Name)
		}
		seen[dc.Name] = true
		if _, err := regexp.Compile(dc.Regex); err != nil {
			return fmt.Errorf("data class %s: %w", dc.Name, err)
		}
	}
	return nil
}

// TenantDataClasses returns the configured detectors bound to the tenant.
func (c *Config) TenantDataClasses() []models.DataClass {
	out := make([]models.DataClass, 0, len(c.DataClasses))
	for _, dc := range c.DataClasses {
		out = append(out, models.DataClass{
			Tenant:     c.Tenant,
			Name:       dc.Name,
			Regex:      dc.Regex,
			StringOnly: dc.StringOnly,
		})
	}
	return out
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return i, nil
}
