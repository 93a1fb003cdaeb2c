package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models docline.yml.
type Config struct {
	Org struct {
		Name string `yaml:"name"`
	} `yaml:"org"`
	Numbering struct {
		// DefaultPrefix is used when no active numbering rule matches and the
		// document belongs to a department without a code, or no department.
		DefaultPrefix string `yaml:"default_prefix"`
		// CentralPrefix is the fallback for central (CEO-level) documents when
		// DefaultPrefix is empty.
		CentralPrefix string `yaml:"central_prefix"`
	} `yaml:"numbering"`
	Auth struct {
		JWTSecretEnv string `yaml:"jwt_secret_env"`
	} `yaml:"auth"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with dl config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Org.Name == "" {
		return fmt.Errorf("config.org.name is required")
	}
	if c.Numbering.CentralPrefix == "" {
		return fmt.Errorf("config.numbering.central_prefix is required")
	}
	if c.Auth.JWTSecretEnv == "" {
		return fmt.Errorf("config.auth.jwt_secret_env is required")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "docline.yml")
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
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
  name: Head Office

numbering:
  # Prefix resolution order for reference numbers:
  # active rule for (department, doc_type) -> default_prefix -> department code.
  default_prefix: ""
  central_prefix: CEO

auth:
  jwt_secret_env: DOCLINE_JWT_SECRET
`
