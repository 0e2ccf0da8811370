package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Common errors for configuration loading.
var (
	ErrFileNotFound     = errors.New("configuration file not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidYAML      = errors.New("invalid YAML syntax")
	ErrEmptyFile        = errors.New("configuration file is empty")
)

// Load builds the effective configuration: defaults, then the YAML file at
// path (skipped when path is empty), then HELLOTEL_* environment variables.
// The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := LoadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads a YAML file over cfg. Keys missing from the file keep their
// current values; a routes list replaces the existing one.
func LoadFile(path string, cfg *Config) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		if os.IsPermission(err) {
			return fmt.Errorf("%w: %s", ErrPermissionDenied, path)
		}
		return fmt.Errorf("failed to stat file: %w", err)
	}

	if info.IsDir() {
		return fmt.Errorf("path is a directory, not a file: %s", path)
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsPermission(err) {
			return fmt.Errorf("%w: %s", ErrPermissionDenied, path)
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	if len(data) == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}

	if err := ParseYAML(data, cfg); err != nil {
		return err
	}
	return loadRouteFiles(filepath.Dir(path), cfg)
}

// loadRouteFiles appends the routes of every file matched by cfg.RouteFiles.
// A pattern matching nothing is an error.
func loadRouteFiles(baseDir string, cfg *Config) error {
	for _, pattern := range cfg.RouteFiles {
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(baseDir, pattern)
		}
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return fmt.Errorf("invalid route file pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return fmt.Errorf("%w: no route files match %s", ErrFileNotFound, pattern)
		}
		sort.Strings(matches)

		for _, match := range matches {
			data, err := os.ReadFile(match)
			if err != nil {
				return fmt.Errorf("failed to read route file: %w", err)
			}
			var doc struct {
				Routes []Route `yaml:"routes"`
			}
			if err := yaml.Unmarshal(data, &doc); err != nil {
				return fmt.Errorf("%w: %s: %v", ErrInvalidYAML, match, err)
			}
			cfg.Routes = append(cfg.Routes, doc.Routes...)
		}
	}
	return nil
}

// ParseYAML decodes data over cfg.
func ParseYAML(data []byte, cfg *Config) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	return nil
}

// ToYAML encodes cfg.
func ToYAML(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// ApplyEnv overrides cfg from HELLOTEL_* environment variables. Unset
// variables leave the current value alone.
func ApplyEnv(cfg *Config) error {
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return fmt.Errorf("failed to load environment: %w", err)
	}
	return nil
}
