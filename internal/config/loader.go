// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/ManuGH/mediatranscoding/internal/domain/session/model"
	"github.com/ManuGH/mediatranscoding/internal/log"
)

// Loader handles configuration loading with precedence.
type Loader struct {
	configPath string
	version    string
	lookup     lookupFunc
	logger     zerolog.Logger

	// ConsumedEnvKeys lists the environment keys read by the last Load.
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a loader for configPath. An empty path means
// environment and defaults only.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath: configPath,
		version:    version,
		lookup:     os.LookupEnv,
		logger:     log.WithComponent("config"),
	}
}

// Path returns the config file path, or "".
func (l *Loader) Path() string { return l.configPath }

// Load applies defaults, then the file, then the environment. It does not
// validate; call Validate on the result.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	env := newEnvReader(l.lookup, l.logger)
	env.apply(&cfg)
	l.ConsumedEnvKeys = env.consumed

	if cfg.Packages == nil {
		cfg.Packages = map[model.UID]string{}
	}
	cfg.Version = l.version
	return cfg, nil
}

// loadFile decodes a YAML file over cfg with strict parsing: unknown fields,
// multiple documents and trailing content are errors.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("%w: %s (only YAML supported)", ErrUnsupportedFormat, ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("strict config parse error: %w: %w", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}

	l.logger.Debug().Str(log.FieldPath, path).Msg("loaded config file")
	return nil
}
