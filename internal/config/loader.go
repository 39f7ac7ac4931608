package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// DefaultConfigFile is looked up in the working directory when no
	// rules file is given explicitly.
	DefaultConfigFile = "prompt-lang.config.yaml"

	// EnvPrefix marks environment variables that override rules-file keys.
	EnvPrefix = "PROMPTLINT_"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Default returns the built-in rules.
func Default() *Config {
	cfg, err := load(nil, false)
	if err != nil {
		// defaults.yaml is compiled in; failing to parse it is a build defect.
		panic(fmt.Sprintf("config: embedded defaults: %v", err))
	}
	return cfg
}

// LoadWithFile loads rules from a YAML file, then overrides with environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (PROMPTLINT_VALIDATION__SEMANTIC_CHECK, ...)
//  2. YAML rules file
//  3. Embedded defaults
//
// If configPath is empty, DefaultConfigFile in the working directory is used
// when it exists and the embedded defaults otherwise. An explicit configPath
// that does not exist returns ErrConfigNotFound.
//
// # Environment Variable Mapping
//
// The prefix is stripped, the rest is lowercased and double underscores
// separate nesting levels, so single underscores survive inside key names:
//
//	PROMPTLINT_VALIDATION__SEMANTIC_CHECK -> validation.semantic_check
//	PROMPTLINT_VALIDATION__TOKENS__WARN_AT -> validation.tokens.warn_at
//	PROMPTLINT_INSTRUCTIONS__ENFORCE_ACTIONS -> instructions.enforce_actions
func LoadWithFile(configPath string) (*Config, error) {
	explicit := configPath != ""
	if !explicit {
		configPath = DefaultConfigFile
	}

	content, err := readConfigFile(configPath)
	if err != nil {
		if errors.Is(err, ErrConfigNotFound) && !explicit {
			return load(nil, true)
		}
		return nil, err
	}

	cfg, err := load(content, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
	}
	return cfg, nil
}

// readConfigFile reads the rules file, rejecting anything over maxConfigFileSize.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	// Stat the opened descriptor to avoid a TOCTOU race with the read.
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("config path %s is a directory", path)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrConfigTooLarge, info.Size(), maxConfigFileSize)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// load layers defaults, the optional file content and, when withEnv is set,
// the environment, then unmarshals and validates the result.
func load(content []byte, withEnv bool) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider(defaultsYAML), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if len(content) > 0 {
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	if withEnv {
		if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
			return nil, fmt.Errorf("failed to load environment variables: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// envKey maps PROMPTLINT_SECTION__FIELD_NAME to section.field_name.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}
