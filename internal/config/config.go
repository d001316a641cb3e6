/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.
// Unknown fields are ignored on unmarshal.

type GeneralConfig struct {
	TelemetryOptIn bool   `yaml:"telemetry_opt_in"`
	Template       string `yaml:"template"`        // name of the block style template
	WatchTemplates bool   `yaml:"watch_templates"` // reload template files when they change on disk
}

type EditorConfig struct {
	CapitalizeSentences bool   `yaml:"capitalize_sentences"`
	CollapseSpaces      bool   `yaml:"collapse_spaces"`
	AbbreviationModel   string `yaml:"abbreviation_model"` // "", "english" or a path to a punkt JSON model
	UndoMaxBytes        int    `yaml:"undo_max_bytes"`
	UndoCoalesceMs      int    `yaml:"undo_coalesce_ms"`
}

type BackendConfig struct {
	DSN       string `yaml:"dsn"`
	TimeoutMs int    `yaml:"timeout_ms"`
	// The database password is not stored on disk; it lives in the OS keychain.
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	General       GeneralConfig `yaml:"general"`
	Editor        EditorConfig  `yaml:"editor"`
	Backend       BackendConfig `yaml:"backend"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{TelemetryOptIn: false, Template: "default"},
		Editor: EditorConfig{
			CapitalizeSentences: true,
			CollapseSpaces:      true,
			UndoMaxBytes:        16 * 1024 * 1024,
			UndoCoalesceMs:      250,
		},
		Backend: BackendConfig{TimeoutMs: 15000},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvConfigDir         = "GSW_CONFIG_DIR"
	EnvTemplate          = "GSW_TEMPLATE"
	EnvTelemetryOptIn    = "GSW_TELEMETRY_OPT_IN"
	EnvCapitalize        = "GSW_AUTOCORRECT"
	EnvAbbreviationModel = "GSW_ABBREVIATION_MODEL"
	EnvBackendDSN        = "GSW_BACKEND_DSN"
	EnvBackendTimeoutMs  = "GSW_BACKEND_TIMEOUT_MS"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "GSW_LOG_LEVEL"
	EnvLogFormat = "GSW_LOG_FORMAT"
	EnvLogSource = "GSW_LOG_SOURCE"
	EnvLogFile   = "GSW_LOG_FILE"
)

// Dir returns the per-user config directory. GSW_CONFIG_DIR wins when set.
func Dir() (string, error) {
	if v := strings.TrimSpace(os.Getenv(EnvConfigDir)); v != "" {
		return v, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "GoScriptWriter")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "GoScriptWriter")
	default: // linux and others
		if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
			base = filepath.Join(x, "goscriptwriter")
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", "goscriptwriter")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return base, nil
}

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// TemplatesDir returns the per-user block style template directory.
func TemplatesDir() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "templates"), nil
}

// Load reads the user config file (if present), applies defaults and merges environment
// overrides. The backend password is read from the keyring and returned separately.
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	if data, err := os.ReadFile(path); err == nil {
		// unmarshal over defaults so omitted booleans keep their default
		fileCfg := Defaults()
		if err := yaml.Unmarshal(data, &fileCfg); err == nil {
			mergeInto(&cfg, &fileCfg)
		}
	}
	applyEnvOverrides(&cfg)
	secret, _ := tokenStore.Get(keyringService, keyringBackendSecret)
	return cfg, secret, nil
}

// Save writes the user config YAML and stores secret in the OS keyring if non-empty.
func Save(cfg AppConfig, secret string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if secret != "" {
		if err := tokenStore.Set(keyringService, keyringBackendSecret, secret); err != nil {
			return err
		}
	}
	return nil
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if strings.TrimSpace(src.General.Template) != "" {
		dst.General.Template = strings.TrimSpace(src.General.Template)
	}
	// booleans: copy directly from src (file) so user preferences persist
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn
	dst.General.WatchTemplates = src.General.WatchTemplates
	dst.Editor.CapitalizeSentences = src.Editor.CapitalizeSentences
	dst.Editor.CollapseSpaces = src.Editor.CollapseSpaces
	if strings.TrimSpace(src.Editor.AbbreviationModel) != "" {
		dst.Editor.AbbreviationModel = strings.TrimSpace(src.Editor.AbbreviationModel)
	}
	if src.Editor.UndoMaxBytes > 0 {
		dst.Editor.UndoMaxBytes = src.Editor.UndoMaxBytes
	}
	if src.Editor.UndoCoalesceMs != 0 {
		dst.Editor.UndoCoalesceMs = src.Editor.UndoCoalesceMs
	}
	if strings.TrimSpace(src.Backend.DSN) != "" {
		dst.Backend.DSN = strings.TrimSpace(src.Backend.DSN)
	}
	if src.Backend.TimeoutMs != 0 {
		dst.Backend.TimeoutMs = src.Backend.TimeoutMs
	}
	// logging
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvTemplate)); v != "" {
		cfg.General.Template = v
	}
	if v, ok := envBool(EnvTelemetryOptIn); ok {
		cfg.General.TelemetryOptIn = v
	}
	if v, ok := envBool(EnvCapitalize); ok {
		cfg.Editor.CapitalizeSentences = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvAbbreviationModel)); v != "" {
		cfg.Editor.AbbreviationModel = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackendDSN)); v != "" {
		cfg.Backend.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackendTimeoutMs)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Backend.TimeoutMs = n
		}
	}
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v, ok := envBool(EnvLogSource); ok {
		cfg.Logging.Source = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

func envBool(key string) (bool, bool) {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return false, false
	}
	return v == "1" || v == "true" || v == "on" || v == "yes", true
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	names := map[string]string{
		"general.template":            EnvTemplate,
		"general.telemetry_opt_in":    EnvTelemetryOptIn,
		"editor.capitalize_sentences": EnvCapitalize,
		"editor.abbreviation_model":   EnvAbbreviationModel,
		"backend.dsn":                 EnvBackendDSN,
		"backend.timeout_ms":          EnvBackendTimeoutMs,
		"logging.level":               EnvLogLevel,
		"logging.format":              EnvLogFormat,
		"logging.source":              EnvLogSource,
		"logging.file":                EnvLogFile,
	}
	if env, ok := names[key]; ok && os.Getenv(env) != "" {
		return env, true
	}
	return "", false
}

// Timeout returns the backend timeout, falling back to the default.
func (b BackendConfig) Timeout() time.Duration {
	if b.TimeoutMs <= 0 {
		return time.Duration(Defaults().Backend.TimeoutMs) * time.Millisecond
	}
	return time.Duration(b.TimeoutMs) * time.Millisecond
}

// UndoCoalesce returns the undo coalescing interval. Negative values disable coalescing.
func (e EditorConfig) UndoCoalesce() time.Duration {
	return time.Duration(e.UndoCoalesceMs) * time.Millisecond
}
