package check

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gnoswap-labs/borrowck"
	tt "github.com/gnoswap-labs/borrowck/internal/types"
)

// DefaultConfigFile is the configuration file looked up in the working
// directory.
const DefaultConfigFile = ".borrowck.yaml"

// Config represents the overall configuration: verifier options, per-rule
// severities and ignored paths.
type Config struct {
	Name     string                   `yaml:"name"`
	Verifier borrowck.Config          `yaml:"verifier"`
	Rules    map[string]tt.ConfigRule `yaml:"rules,omitempty"`
	Ignore   []string                 `yaml:"ignore,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Name:     "borrowck",
		Verifier: borrowck.DefaultConfig(),
	}
}

// LoadConfig reads the configuration file. A missing file is not an error.
func LoadConfig(configurationPath string) (Config, error) {
	f, err := os.Open(configurationPath)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("error opening configuration: %w", err)
	}
	defer f.Close()
	return ParseConfig(f)
}

// ParseConfig decodes a YAML configuration on top of the defaults.
func ParseConfig(r io.Reader) (Config, error) {
	config := DefaultConfig()
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("error parsing configuration: %w", err)
	}
	return config, nil
}

// WriteConfig writes config as YAML to path, refusing to overwrite.
func WriteConfig(path string, config Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file %s already exists", path)
	}
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("error marshaling configuration: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("error writing configuration: %w", err)
	}
	return nil
}
