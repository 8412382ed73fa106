package config

import (
	"testing"

	"squeezer-go/internal/policy"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Tier() != policy.TierMaximum {
		t.Errorf("default tier = %v, expected maximum", cfg.Tier())
	}
	if !cfg.PreserveMetadata {
		t.Error("metadata preservation should default to on")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing output dir", mutate: func(c *Config) { c.OutputDirectory = "" }, wantErr: true},
		{name: "bad tier", mutate: func(c *Config) { c.QualityTier = "extreme" }, wantErr: true},
		{name: "tier alias", mutate: func(c *Config) { c.QualityTier = "max" }},
		{name: "bad log level", mutate: func(c *Config) { c.Logging.Level = "verbose" }, wantErr: true},
		{name: "bad port", mutate: func(c *Config) { c.Web.Port = 0 }, wantErr: true},
		{name: "port too large", mutate: func(c *Config) { c.Web.Port = 70000 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Fatal("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestTierParsing(t *testing.T) {
	cfg := DefaultConfig()
	cfg.QualityTier = "low"
	if cfg.Tier() != policy.TierLow {
		t.Errorf("Tier() = %v, expected low", cfg.Tier())
	}
}
