package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("WORKER_COUNT", "-1")
	t.Setenv("JOB_TTL", "bogus")
	for _, k := range []string{"PORT", "PATHSTORE_URL", "HEADING_BASE_SIZE", "HEADING_STEP"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	if cfg.Port != "8090" {
		t.Errorf("expected port %q, got %q", "8090", cfg.Port)
	}
	if cfg.WorkerCount != 4 {
		t.Errorf("expected non-positive worker count to fall back to 4, got %d", cfg.WorkerCount)
	}
	if cfg.JobTTL != time.Hour {
		t.Errorf("expected unparsable JOB_TTL to fall back to 1h, got %v", cfg.JobTTL)
	}
	if cfg.HeadingBaseSize != 22 || cfg.HeadingStep != 2 {
		t.Errorf("unexpected heading sizes %v/%v", cfg.HeadingBaseSize, cfg.HeadingStep)
	}
	if cfg.GraphEnabled() {
		t.Error("expected graph sink disabled without PATHSTORE_URL")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("HEADING_STEP", "1.5")
	t.Setenv("PATHSTORE_URL", "http://pathstore:8080")
	t.Setenv("PDF_FALLBACK_PDFTOTEXT", "false")

	cfg := Load()
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("expected debug level, got %v", cfg.SlogLevel())
	}
	if cfg.HeadingStep != 1.5 {
		t.Errorf("expected step 1.5, got %v", cfg.HeadingStep)
	}
	if !cfg.GraphEnabled() || cfg.PDFFallbackPdftotext {
		t.Errorf("unexpected config %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		Port:            "8090",
		DocgraphAPIKey:  "k",
		SQLitePath:      "x.db",
		LogLevel:        "info",
		HeadingBaseSize: 22,
		HeadingStep:     2,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing api key", func(c *Config) { c.DocgraphAPIKey = "" }, "DOCGRAPH_API_KEY"},
		{"pathstore without key", func(c *Config) { c.PathstoreURL = "http://ps:8080" }, "PATHSTORE_API_KEY"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "LogLevel"},
		{"bad port", func(c *Config) { c.Port = "http" }, "Port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}
