package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	"trakka/internal/domain"
)

// Config models trakka.yml.
type Config struct {
	Organization struct {
		Name     string `yaml:"name" json:"name"`
		Timezone string `yaml:"timezone" json:"timezone"`
	} `yaml:"organization" json:"organization"`
	Timer struct {
		DescriptionPrefix string `yaml:"description_prefix" json:"description_prefix"`
	} `yaml:"timer" json:"timer"`
	Projects struct {
		RequireMembership bool `yaml:"require_membership" json:"require_membership"`
	} `yaml:"projects" json:"projects"`
	Bootstrap struct {
		Admins []string `yaml:"admins" json:"admins"`
	} `yaml:"bootstrap" json:"bootstrap"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with trakka init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Organization.Name) == "" {
		return fmt.Errorf("config.organization.name is required")
	}
	if _, err := time.LoadLocation(c.Organization.Timezone); err != nil {
		return fmt.Errorf("config.organization.timezone %q: %w", c.Organization.Timezone, err)
	}
	for _, id := range c.Bootstrap.Admins {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("config.bootstrap.admins contains empty actor id")
		}
	}
	return nil
}

// Location returns the timezone used to decide calendar dates.
func (c *Config) Location() *time.Location {
	if c == nil || c.Organization.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Organization.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// TimerDescription is the description given to timer entries created without one.
func (c *Config) TimerDescription(start time.Time) string {
	prefix := "Timer session: "
	if c != nil && c.Timer.DescriptionPrefix != "" {
		prefix = c.Timer.DescriptionPrefix
	}
	return prefix + start.In(c.Location()).Format(domain.DateLayout+" 15:04")
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "trakka.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(orgName string) string {
	return fmt.Sprintf(defaultTemplate, orgName)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct.
func Default(orgName string) *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(GenerateDefault(orgName))).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if cfg.Organization.Timezone == "" {
		cfg.Organization.Timezone = "UTC"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// Write stores cfg as the workspace config file.
func Write(workspace string, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(Path(workspace), data, 0o644)
}

const defaultTemplate = `organization:
  name: %q
  timezone: UTC

timer:
  description_prefix: "Timer session: "

projects:
  require_membership: false

bootstrap:
  admins: []
`
