package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v2"
)

func TestResolveEnvVars(t *testing.T) {
	t.Setenv("VERSO_TEST_KEY", "sk-12345")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain value untouched", "literal-key", "literal-key"},
		{"env reference", "${VERSO_TEST_KEY}", "sk-12345"},
		{"embedded reference", "Bearer ${VERSO_TEST_KEY}", "Bearer sk-12345"},
		{"unset variable becomes empty", "${VERSO_TEST_UNSET_XYZ}", ""},
		{"empty input", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveEnvVars(tt.input); got != tt.want {
				t.Errorf("ResolveEnvVars(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestBackendLookup(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	cfg := DefaultConfig()

	t.Run("default backend", func(t *testing.T) {
		b, err := cfg.Backend("")
		if err != nil {
			t.Fatalf("Backend: %v", err)
		}
		if b.APIKey != "sk-test" {
			t.Errorf("api key = %q, env reference not resolved", b.APIKey)
		}
		if b.Model == "" {
			t.Error("model not set")
		}
	})

	t.Run("named backend", func(t *testing.T) {
		b, err := cfg.Backend("local")
		if err != nil {
			t.Fatalf("Backend: %v", err)
		}
		if b.BaseURL == "" {
			t.Error("base url not set")
		}
	})

	t.Run("unknown backend", func(t *testing.T) {
		if _, err := cfg.Backend("nope"); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Pipeline.CheckpointInterval != 10 {
		t.Errorf("checkpoint interval = %d", cfg.Pipeline.CheckpointInterval)
	}
	if cfg.Pipeline.MinSegmentLength != 2 {
		t.Errorf("min segment length = %d", cfg.Pipeline.MinSegmentLength)
	}
	if cfg.Pipeline.GlossaryHead != 20 || cfg.Pipeline.GlossaryMid != 10 || cfg.Pipeline.GlossaryTail != 10 {
		t.Errorf("glossary windows = %d/%d/%d",
			cfg.Pipeline.GlossaryHead, cfg.Pipeline.GlossaryMid, cfg.Pipeline.GlossaryTail)
	}
	if _, ok := cfg.Backends[cfg.Defaults.Backend]; !ok {
		t.Errorf("default backend %q has no config block", cfg.Defaults.Backend)
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}

	if !strings.HasPrefix(string(data), "# verso configuration") {
		t.Error("missing comment header")
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		t.Fatalf("written config is not valid yaml: %v", err)
	}
	for _, key := range []string{"store", "backends", "defaults", "pipeline"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("missing section %q", key)
		}
	}
}
