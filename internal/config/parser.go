package config

import (
	"os"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Parser errors.
var (
	ErrInvalidYAML  = errors.New("invalid YAML format")
	ErrInvalidSize  = errors.New("invalid size format")
	ErrFileNotFound = errors.New("configuration file not found")
)

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// LoadConfig loads configuration from a file path.
// It reads the file, substitutes environment variables, parses YAML,
// and applies defaults for missing values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(ErrFileNotFound, path)
		}
		return nil, errors.Wrap(err, "read configuration")
	}

	return ParseConfig(data)
}

// ParseConfig parses configuration from YAML data.
// It substitutes environment variables and applies defaults for missing values.
func ParseConfig(data []byte) (*Config, error) {
	data = substituteEnvVars(data)

	// Fields absent from data keep their defaults.
	config := DefaultConfig()
	if err := yaml.UnmarshalStrict(data, config); err != nil {
		return nil, errors.Wrap(ErrInvalidYAML, err.Error())
	}

	return config, nil
}

// Marshal renders the configuration as YAML.
func Marshal(config *Config) ([]byte, error) {
	out, err := yaml.Marshal(config)
	if err != nil {
		return nil, errors.Wrap(err, "marshal configuration")
	}
	return out, nil
}

// substituteEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment variable values.
func substituteEnvVars(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		content := string(match[2 : len(match)-1])

		if idx := strings.Index(content, ":-"); idx != -1 {
			if val := os.Getenv(content[:idx]); val != "" {
				return []byte(val)
			}
			return []byte(content[idx+2:])
		}

		return []byte(os.Getenv(content))
	})
}
