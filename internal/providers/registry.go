package providers

import (
	"fmt"
	"time"
)

// BackendConfig is the config-driven description of one backend client.
type BackendConfig struct {
	Type       string        `mapstructure:"type"` // "openai-compat" or "openai"
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	Model      string        `mapstructure:"model"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RPM        int           `mapstructure:"rpm"`
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// NewFromConfig instantiates the backend client a config block describes.
func NewFromConfig(cfg BackendConfig) (ChatClient, error) {
	switch cfg.Type {
	case CompatName, "":
		return NewCompatClient(CompatConfig{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.Model,
			Timeout:      cfg.Timeout,
			RPM:          cfg.RPM,
			MaxRetries:   cfg.MaxRetries,
			RetryDelay:   cfg.RetryDelay,
		}), nil
	case OpenAIName:
		return NewOpenAIClient(OpenAIConfig{
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.Model,
			Timeout:      cfg.Timeout,
			RPM:          cfg.RPM,
			MaxRetries:   cfg.MaxRetries,
		}), nil
	default:
		return nil, fmt.Errorf("unknown backend type: %s", cfg.Type)
	}
}
