package bootstrap

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const logPrefix = "bootstrap:loader"

// LoadBootstrapConfig loads bootstrap config from file paths or environment.
// Explicit files (paths passed in, then FETCHER_BOOTSTRAP_FILE) must exist and parse; each is
// merged over the defaults in order. Without explicit files the well-known locations are
// tried and the first readable one wins, falling back to defaults.
// Files ending in .yaml or .yml are parsed as YAML, everything else as JSON.
func LoadBootstrapConfig(paths ...string) (*BootstrapConfig, error) {
	explicit := make([]string, 0, len(paths)+1)
	seen := map[string]bool{}
	candidates := append(append([]string{}, paths...), os.Getenv("FETCHER_BOOTSTRAP_FILE"))
	for _, p := range candidates {
		if p != "" && !seen[p] {
			seen[p] = true
			explicit = append(explicit, p)
		}
	}

	if len(explicit) > 0 {
		cfg := GetDefaultBootstrapConfig()
		for _, p := range explicit {
			override, err := readBootstrapFile(p)
			if err != nil {
				return nil, err
			}
			cfg = MergeBootstrapConfigs(cfg, override)
			slog.Info(fmt.Sprintf("%s - Loaded bootstrap config from %s (%d handlers)", logPrefix, p, len(override.Handlers)))
		}
		return cfg, nil
	}

	for _, p := range []string{"config/bootstrap.yaml", "config/bootstrap.json", "bootstrap.yaml", "bootstrap.json"} {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		override, err := readBootstrapFile(p)
		if err != nil {
			slog.Warn(fmt.Sprintf("%s - Skipping bootstrap file: %v", logPrefix, err))
			continue
		}
		slog.Info(fmt.Sprintf("%s - Loaded bootstrap config from %s (%d handlers)", logPrefix, p, len(override.Handlers)))
		return MergeBootstrapConfigs(GetDefaultBootstrapConfig(), override), nil
	}

	slog.Info(fmt.Sprintf("%s - Using default bootstrap config", logPrefix))
	return GetDefaultBootstrapConfig(), nil
}

func readBootstrapFile(path string) (*BootstrapConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s - read %s: %w", logPrefix, path, err)
	}
	cfg, err := ParseBootstrapConfig(path, data)
	if err != nil {
		return nil, fmt.Errorf("%s - parse %s: %w", logPrefix, path, err)
	}
	return cfg, nil
}

// ParseBootstrapConfig decodes data, choosing YAML or JSON by the extension of path.
func ParseBootstrapConfig(path string, data []byte) (*BootstrapConfig, error) {
	var cfg BootstrapConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("%s - yaml: %w", logPrefix, err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("%s - json: %w", logPrefix, err)
		}
	}
	for name := range cfg.Handlers {
		if name == "" || strings.Contains(name, ".") {
			return nil, fmt.Errorf("%s - invalid handler name %q", logPrefix, name)
		}
	}
	return &cfg, nil
}

// GetDefaultBootstrapConfig returns the fallback configuration: no remote handlers.
func GetDefaultBootstrapConfig() *BootstrapConfig {
	return &BootstrapConfig{
		Name:        "resource-fetcher-bootstrap",
		Version:     "1.0.0",
		Description: "Default bootstrap configuration without remote handlers",
		Handlers:    map[string]RemoteHandler{},
		Aliases:     map[string]string{},
		ChangeEvents: ChangeEventSubjects{
			Global:  "resource.changed",
			Pattern: "resource.changed.{handler}.{operation}",
		},
	}
}

// CreateResolvedBootstrap builds a ResolvedBootstrap for fast lookups.
func CreateResolvedBootstrap(cfg *BootstrapConfig) *ResolvedBootstrap {
	handlers := make(map[string]*RemoteHandler, len(cfg.Handlers))
	for name, h := range cfg.Handlers {
		entry := h
		handlers[name] = &entry
	}

	aliases := make(map[string]string, len(cfg.Aliases))
	for alias, target := range cfg.Aliases {
		aliases[alias] = target
	}

	return &ResolvedBootstrap{
		name:          cfg.Name,
		version:       cfg.Version,
		subjectPrefix: cfg.SubjectPrefix,
		handlers:      handlers,
		aliases:       aliases,
		changeEvents:  cfg.ChangeEvents,
	}
}

// MergeBootstrapConfigs merges an override config into a base config. Neither input is modified.
func MergeBootstrapConfigs(base, override *BootstrapConfig) *BootstrapConfig {
	merged := *base
	if override.Name != "" {
		merged.Name = override.Name
	}
	if override.Version != "" {
		merged.Version = override.Version
	}
	if override.Description != "" {
		merged.Description = override.Description
	}

	merged.Handlers = make(map[string]RemoteHandler, len(base.Handlers)+len(override.Handlers))
	for name, h := range base.Handlers {
		merged.Handlers[name] = h
	}
	for name, h := range override.Handlers {
		merged.Handlers[name] = h
	}

	merged.Aliases = make(map[string]string, len(base.Aliases)+len(override.Aliases))
	for alias, target := range base.Aliases {
		merged.Aliases[alias] = target
	}
	for alias, target := range override.Aliases {
		merged.Aliases[alias] = target
	}

	if override.SubjectPrefix != "" {
		merged.SubjectPrefix = override.SubjectPrefix
	}
	if override.ChangeEvents.Global != "" {
		merged.ChangeEvents.Global = override.ChangeEvents.Global
	}
	if override.ChangeEvents.Pattern != "" {
		merged.ChangeEvents.Pattern = override.ChangeEvents.Pattern
	}

	return &merged
}
