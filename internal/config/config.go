// Package config loads milestones settings from a YAML file, a .env file
// and MILESTONES_* environment variables, in that order of precedence
// (later wins).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/alexanderramin/milestones/internal/backend"
)

const envPrefix = "MILESTONES_"

type BackendConfig struct {
	BaseURL        string `yaml:"base_url" validate:"required,url"`
	Token          string `yaml:"token"`
	TimeoutMs      int    `yaml:"timeout_ms" validate:"gte=0"`
	MaxRetries     int    `yaml:"max_retries" validate:"gte=0,lte=10"`
	RetryBackoffMs int    `yaml:"retry_backoff_ms" validate:"gte=0"`
}

type AutosaveConfig struct {
	DebounceMs          int `yaml:"debounce_ms" validate:"gte=100"`
	StatusSaveTimeoutMs int `yaml:"status_save_timeout_ms" validate:"gt=0"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json text"`
}

// Config is the full application configuration.
type Config struct {
	Backend       BackendConfig  `yaml:"backend"`
	User          string         `yaml:"user"`
	Department    string         `yaml:"department"`
	DBPath        string         `yaml:"db_path" validate:"required"`
	TemplatesPath string         `yaml:"templates_path"`
	Autosave      AutosaveConfig `yaml:"autosave"`
	Log           LogConfig      `yaml:"log"`

	// Path is the file the config was read from, empty when none existed.
	Path string `yaml:"-"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	bc := backend.DefaultConfig()
	return Config{
		Backend: BackendConfig{
			BaseURL:        bc.BaseURL,
			TimeoutMs:      bc.TimeoutMs,
			MaxRetries:     bc.MaxRetries,
			RetryBackoffMs: bc.RetryBackoffMs,
		},
		DBPath:        filepath.Join(homeDir(), ".milestones", "milestones.db"),
		TemplatesPath: filepath.Join(homeDir(), ".milestones", "templates.yaml"),
		Autosave: AutosaveConfig{
			DebounceMs:          2000,
			StatusSaveTimeoutMs: 10000,
		},
		Log: LogConfig{Level: "warn", Format: "json"},
	}
}

// Load reads configuration. path overrides $MILESTONES_CONFIG and the
// default ~/.milestones/config.yaml; a missing file is not an error.
func Load(path string) (Config, error) {
	// A missing .env is fine.
	_ = godotenv.Load()

	cfg := Default()
	if path == "" {
		path = os.Getenv(envPrefix + "CONFIG")
	}
	if path == "" {
		path = filepath.Join(homeDir(), ".milestones", "config.yaml")
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
		cfg.Path = path
	case errors.Is(err, fs.ErrNotExist):
	default:
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"BACKEND_URL":   &cfg.Backend.BaseURL,
		"BACKEND_TOKEN": &cfg.Backend.Token,
		"USER":          &cfg.User,
		"DEPARTMENT":    &cfg.Department,
		"DB":            &cfg.DBPath,
		"TEMPLATES":     &cfg.TemplatesPath,
		"LOG_LEVEL":     &cfg.Log.Level,
		"LOG_FORMAT":    &cfg.Log.Format,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	ints := map[string]*int{
		"BACKEND_TIMEOUT_MS":     &cfg.Backend.TimeoutMs,
		"BACKEND_MAX_RETRIES":    &cfg.Backend.MaxRetries,
		"AUTOSAVE_DEBOUNCE_MS":   &cfg.Autosave.DebounceMs,
		"STATUS_SAVE_TIMEOUT_MS": &cfg.Autosave.StatusSaveTimeoutMs,
	}
	for key, dst := range ints {
		v, ok := os.LookupEnv(envPrefix + key)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		n, err := cast.ToIntE(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, key, err)
		}
		*dst = n
	}
	return nil
}

// Validate checks field constraints and reports every violation at once.
func Validate(cfg Config) error {
	err := validator.New().Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	sort.Strings(msgs)
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// BackendClientConfig returns the settings for backend.NewHTTPClient.
func (c Config) BackendClientConfig() backend.Config {
	return backend.Config{
		BaseURL:        strings.TrimRight(c.Backend.BaseURL, "/"),
		Token:          c.Backend.Token,
		TimeoutMs:      c.Backend.TimeoutMs,
		MaxRetries:     c.Backend.MaxRetries,
		RetryBackoffMs: c.Backend.RetryBackoffMs,
	}
}

func (c Config) Debounce() time.Duration {
	return time.Duration(c.Autosave.DebounceMs) * time.Millisecond
}

func (c Config) StatusSaveTimeout() time.Duration {
	return time.Duration(c.Autosave.StatusSaveTimeoutMs) * time.Millisecond
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
