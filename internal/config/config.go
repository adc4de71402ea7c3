package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models propcheck.yml.
type Config struct {
	Org struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"org"`
	Inspections struct {
		Catalog map[string]struct {
			Description string `yaml:"description"`
		} `yaml:"catalog"`
		Defaults struct {
			Type       string `yaml:"type"`
			DayOfMonth int    `yaml:"day_of_month"`
		} `yaml:"defaults"`
	} `yaml:"inspections"`
	Documents struct {
		Catalog map[string]struct {
			Description string `yaml:"description"`
		} `yaml:"catalog"`
	} `yaml:"documents"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// WebhookConfig describes one event push target.
type WebhookConfig struct {
	URL            string   `yaml:"url" json:"url"`
	Events         []string `yaml:"events,omitempty" json:"events,omitempty"`
	Secret         string   `yaml:"secret,omitempty" json:"secret,omitempty"`
	TimeoutSeconds int      `yaml:"timeout_seconds,omitempty" json:"timeout_seconds,omitempty"`
	Enabled        *bool    `yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; import with pck org config import --file <path>", path)
		}
		return nil, err
	}
	return FromYAML(data)
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

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Org.ID == "" {
		return fmt.Errorf("config.org.id is required")
	}
	if c.Inspections.Defaults.Type == "" {
		return fmt.Errorf("config.inspections.defaults.type is required")
	}
	if len(c.Inspections.Catalog) > 0 {
		if _, ok := c.Inspections.Catalog[c.Inspections.Defaults.Type]; !ok {
			return fmt.Errorf("default inspection type %s not in catalog", c.Inspections.Defaults.Type)
		}
	}
	if d := c.Inspections.Defaults.DayOfMonth; d < 1 || d > 28 {
		return fmt.Errorf("config.inspections.defaults.day_of_month must be in 1..28")
	}
	for kind := range c.Inspections.Catalog {
		if kind == "" {
			return fmt.Errorf("config.inspections.catalog contains empty type")
		}
	}
	for kind := range c.Documents.Catalog {
		if kind == "" {
			return fmt.Errorf("config.documents.catalog contains empty type")
		}
	}
	for i, hook := range c.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("webhook %d has empty url", i)
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "propcheck.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(orgID string) string {
	return fmt.Sprintf(defaultTemplate, orgID)
}

// Default returns the default Config struct for an org.
func Default(orgID string) *Config {
	var cfg Config
	cfg.Org.ID = orgID
	_ = yaml.NewDecoder(bytes.NewBufferString(fmt.Sprintf(defaultTemplate, orgID))).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
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

const defaultTemplate = `org:
  id: %s
  name: Default Org

inspections:
  catalog:
    routine:
      description: "Routine periodic inspection"
    fire_safety:
      description: "Fire safety inspection"
    gas_safety:
      description: "Gas appliance safety check"
    electrical:
      description: "Electrical installation condition check"
    legionella:
      description: "Legionella risk assessment"
  defaults:
    type: routine
    day_of_month: 1

documents:
  catalog:
    gas_certificate:
      description: "Gas safety certificate"
    eicr:
      description: "Electrical installation condition report"
    fire_risk_assessment:
      description: "Fire risk assessment report"
    buildings_insurance:
      description: "Buildings insurance policy"
    epc:
      description: "Energy performance certificate"
`
