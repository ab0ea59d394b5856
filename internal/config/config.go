// Package config loads and hot-reloads the verso configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/versobook/verso/internal/providers"
	"github.com/versobook/verso/internal/store"
)

// Config is the full application configuration.
type Config struct {
	Store    StoreConfig                        `mapstructure:"store" yaml:"store"`
	Backends map[string]providers.BackendConfig `mapstructure:"backends" yaml:"backends"`
	Defaults Defaults                           `mapstructure:"defaults" yaml:"defaults"`
	Pipeline Pipeline                           `mapstructure:"pipeline" yaml:"pipeline"`
}

// StoreConfig configures the remote store client.
type StoreConfig struct {
	URL         string        `mapstructure:"url" yaml:"url"`
	Token       string        `mapstructure:"token" yaml:"token"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxAttempts uint          `mapstructure:"max_attempts" yaml:"max_attempts"`
}

// Defaults selects what the CLI uses when flags are absent.
type Defaults struct {
	Backend        string `mapstructure:"backend" yaml:"backend"`
	SourceLanguage string `mapstructure:"source_language" yaml:"source_language"`
	TargetLanguage string `mapstructure:"target_language" yaml:"target_language"`
}

// Pipeline holds the translation pipeline tunables.
type Pipeline struct {
	CheckpointInterval int           `mapstructure:"checkpoint_interval" yaml:"checkpoint_interval"`
	Placeholder        string        `mapstructure:"placeholder" yaml:"placeholder"`
	MinSegmentLength   int           `mapstructure:"min_segment_length" yaml:"min_segment_length"`
	SegmentTimeout     time.Duration `mapstructure:"segment_timeout" yaml:"segment_timeout"`
	GlossaryHead       int           `mapstructure:"glossary_head" yaml:"glossary_head"`
	GlossaryMid        int           `mapstructure:"glossary_mid" yaml:"glossary_mid"`
	GlossaryTail       int           `mapstructure:"glossary_tail" yaml:"glossary_tail"`
}

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a config manager and loads the initial configuration.
// When cfgFile is empty, config.yaml is searched in . and ~/.verso.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{}

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

func (cm *Manager) initViper(cfgFile string) error {
	defaults := DefaultConfig()
	viper.SetDefault("store", defaults.Store)
	viper.SetDefault("backends", defaults.Backends)
	viper.SetDefault("defaults", defaults.Defaults)
	viper.SetDefault("pipeline", defaults.Pipeline)

	viper.SetEnvPrefix("VERSO")
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.verso")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration.
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// OnChange registers a callback invoked after each successful reload.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of the configuration file.
func (cm *Manager) WatchConfig() {
	viper.OnConfigChange(func(e fsnotify.Event) {
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
	viper.WatchConfig()
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envVarPattern.ReplaceAllStringFunc(value, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}

// Backend returns the named backend config with its API key resolved. An
// empty name selects the configured default backend.
func (c *Config) Backend(name string) (providers.BackendConfig, error) {
	if name == "" {
		name = c.Defaults.Backend
	}
	b, ok := c.Backends[name]
	if !ok {
		return providers.BackendConfig{}, fmt.Errorf("unknown backend %q", name)
	}
	b.APIKey = ResolveEnvVars(b.APIKey)
	return b, nil
}

// StoreClientConfig converts the store section for store.NewClient, resolving
// the auth token's environment reference.
func (c *Config) StoreClientConfig() store.Config {
	return store.Config{
		URL:         c.Store.URL,
		Token:       ResolveEnvVars(c.Store.Token),
		Timeout:     c.Store.Timeout,
		MaxAttempts: c.Store.MaxAttempts,
	}
}
