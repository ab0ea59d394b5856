package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/versobook/verso/internal/providers"
)

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			URL:         "http://localhost:8787",
			Token:       "${VERSO_STORE_TOKEN}",
			Timeout:     30 * time.Second,
			MaxAttempts: 4,
		},
		Backends: map[string]providers.BackendConfig{
			"openai": {
				Type:    providers.OpenAIName,
				APIKey:  "${OPENAI_API_KEY}",
				Model:   "gpt-4o-mini",
				Timeout: 120 * time.Second,
			},
			"local": {
				Type:    providers.CompatName,
				BaseURL: "http://localhost:11434/v1",
				Model:   "qwen2.5:14b",
				Timeout: 300 * time.Second,
				RPM:     120,
			},
		},
		Defaults: Defaults{
			Backend:        "openai",
			SourceLanguage: "English",
			TargetLanguage: "Spanish",
		},
		Pipeline: Pipeline{
			CheckpointInterval: 10,
			Placeholder:        "[translation unavailable]",
			MinSegmentLength:   2,
			SegmentTimeout:     90 * time.Second,
			GlossaryHead:       20,
			GlossaryMid:        10,
			GlossaryTail:       10,
		},
	}
}

// WriteDefault writes a commented default configuration file to path.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(defaultYAML())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# verso configuration
# API keys and tokens use ${ENV_VAR} syntax to reference environment variables.
# Set these in your shell: export OPENAI_API_KEY=xxx VERSO_STORE_TOKEN=xxx

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}

// defaultYAML renders the defaults as an ordered YAML document. Durations are
// written in Go duration syntax, which viper parses back.
func defaultYAML() yaml.MapSlice {
	cfg := DefaultConfig()

	backends := yaml.MapSlice{}
	for _, name := range []string{"openai", "local"} {
		b := cfg.Backends[name]
		entry := yaml.MapSlice{
			{Key: "type", Value: b.Type},
		}
		if b.BaseURL != "" {
			entry = append(entry, yaml.MapItem{Key: "base_url", Value: b.BaseURL})
		}
		if b.APIKey != "" {
			entry = append(entry, yaml.MapItem{Key: "api_key", Value: b.APIKey})
		}
		entry = append(entry, yaml.MapItem{Key: "model", Value: b.Model})
		entry = append(entry, yaml.MapItem{Key: "timeout", Value: b.Timeout.String()})
		if b.RPM > 0 {
			entry = append(entry, yaml.MapItem{Key: "rpm", Value: b.RPM})
		}
		backends = append(backends, yaml.MapItem{Key: name, Value: entry})
	}

	return yaml.MapSlice{
		{Key: "store", Value: yaml.MapSlice{
			{Key: "url", Value: cfg.Store.URL},
			{Key: "token", Value: cfg.Store.Token},
			{Key: "timeout", Value: cfg.Store.Timeout.String()},
			{Key: "max_attempts", Value: cfg.Store.MaxAttempts},
		}},
		{Key: "backends", Value: backends},
		{Key: "defaults", Value: yaml.MapSlice{
			{Key: "backend", Value: cfg.Defaults.Backend},
			{Key: "source_language", Value: cfg.Defaults.SourceLanguage},
			{Key: "target_language", Value: cfg.Defaults.TargetLanguage},
		}},
		{Key: "pipeline", Value: yaml.MapSlice{
			{Key: "checkpoint_interval", Value: cfg.Pipeline.CheckpointInterval},
			{Key: "placeholder", Value: cfg.Pipeline.Placeholder},
			{Key: "min_segment_length", Value: cfg.Pipeline.MinSegmentLength},
			{Key: "segment_timeout", Value: cfg.Pipeline.SegmentTimeout.String()},
			{Key: "glossary_head", Value: cfg.Pipeline.GlossaryHead},
			{Key: "glossary_mid", Value: cfg.Pipeline.GlossaryMid},
			{Key: "glossary_tail", Value: cfg.Pipeline.GlossaryTail},
		}},
	}
}
