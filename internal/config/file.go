package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// FileNames lists the config files looked up in a project root, in order.
var FileNames = []string{"wasmloader.toml", "wasmloader.yaml", "wasmloader.yml"}

// FindFile returns the first config file present in dir.
func FindFile(dir string) (path string, ok bool, err error) {
	for _, name := range FileNames {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
	}
	return "", false, nil
}

// LoadFile reads a TOML or YAML config file on top of Default().
// Unknown keys are rejected so typos do not silently fall back to defaults.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	// #nosec G304 -- path comes from FindFile or an explicit --config flag
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		meta, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return Config{}, fmt.Errorf("%s: unknown key %q", path, undecoded[0].String())
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("%s: failed to parse YAML: %w", path, err)
		}
	default:
		return Config{}, fmt.Errorf("%s: unsupported config format (expected .toml, .yaml or .yml)", path)
	}
	cfg = cfg.Normalized()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}
