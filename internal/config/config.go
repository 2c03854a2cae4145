package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

// EnvPrefix prefixes environment overrides, e.g. LEAPOCR_POLL_TIMEOUT_SECONDS.
const EnvPrefix = "LEAPOCR"

var envRefPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	mu        sync.RWMutex
	v         *viper.Viper
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a new config manager and loads initial config.
// An empty cfgFile searches ./config.yaml and ~/.leapocr/config.yaml;
// a missing file is not an error.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{
		v:         viper.New(),
		callbacks: make([]func(*Config), 0),
	}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string) error {
	v := cm.v
	d := DefaultConfig()

	// Defaults per leaf key so every key is also reachable from the environment.
	v.SetDefault("api_key", d.APIKey)
	v.SetDefault("base_url", d.BaseURL)
	v.SetDefault("timeout_seconds", d.TimeoutSeconds)
	v.SetDefault("max_retries", d.MaxRetries)
	v.SetDefault("user_agent", d.UserAgent)
	v.SetDefault("requests_per_minute", d.RequestsPerMinute)
	v.SetDefault("upload_method", d.UploadMethod)
	v.SetDefault("processing.format", d.Processing.Format)
	v.SetDefault("processing.tier", d.Processing.Tier)
	v.SetDefault("processing.project_id", d.Processing.ProjectID)
	v.SetDefault("processing.schema_id", d.Processing.SchemaID)
	v.SetDefault("processing.instruction_id", d.Processing.InstructionID)
	v.SetDefault("processing.category_id", d.Processing.CategoryID)
	v.SetDefault("processing.webhook_url", d.Processing.WebhookURL)
	v.SetDefault("poll.interval_seconds", d.Poll.IntervalSeconds)
	v.SetDefault("poll.max_interval_seconds", d.Poll.MaxIntervalSeconds)
	v.SetDefault("poll.backoff_multiplier", d.Poll.BackoffMultiplier)
	v.SetDefault("poll.timeout_seconds", d.Poll.TimeoutSeconds)
	v.SetDefault("poll.jitter", d.Poll.Jitter)
	v.SetDefault("poll.max_retries", d.Poll.MaxRetries)
	v.SetDefault("batch.max_concurrent", d.Batch.MaxConcurrent)

	// Environment variables with LEAPOCR_ prefix
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.leapocr")
	}

	// Try to read config file (not required)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// ConfigFile returns the config file in use, or "" when running on defaults.
func (cm *Manager) ConfigFile() string {
	return cm.v.ConfigFileUsed()
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration. Invalid edits are
// ignored and the previous config stays in effect.
func (cm *Manager) WatchConfig() {
	cm.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	cm.v.WatchConfig()
}

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envRefPattern.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# LeapOCR configuration
# The API key uses ${ENV_VAR} syntax to reference an environment variable.
# Set it in your shell: export LEAPOCR_API_KEY=xxx
# Any key can be overridden from the environment, e.g. LEAPOCR_POLL_TIMEOUT_SECONDS=300

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
