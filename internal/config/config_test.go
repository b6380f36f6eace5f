package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
	}{
		{
			name:    "default config",
			envVars: map[string]string{},
			wantErr: false,
		},
		{
			name: "custom config",
			envVars: map[string]string{
				"SERVICE_NAME":         "test-service",
				"ANALYSIS_SAMPLE_SIZE": "20",
				"ANALYSIS_WORKERS":     "4",
				"KAFKA_BROKERS":        "broker1:9092,broker2:9092",
			},
			wantErr: false,
		},
		{
			name: "invalid input source",
			envVars: map[string]string{
				"ANALYSIS_INPUT_SOURCE": "carrier-pigeon",
			},
			wantErr: true,
		},
		{
			name: "invalid significance",
			envVars: map[string]string{
				"ANALYSIS_SIGNIFICANCE": "1.5",
			},
			wantErr: true,
		},
		{
			name: "negative max records",
			envVars: map[string]string{
				"COLLECTOR_MAX_RECORDS": "-1",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Set environment variables
			for key, value := range tt.envVars {
				if err := os.Setenv(key, value); err != nil {
					t.Fatalf("failed to set environment variable %s: %v", key, err)
				}
			}
			defer func() {
				// Clean up environment variables
				for key := range tt.envVars {
					if err := os.Unsetenv(key); err != nil {
						t.Logf("failed to unset environment variable %s: %v", key, err)
					}
				}
			}()

			cfg, err := Load()
			if (err != nil) != tt.wantErr {
				t.Errorf("Load() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr {
				// Verify some basic fields
				if cfg.ServiceName == "" {
					t.Error("ServiceName should not be empty")
				}
				if cfg.SampleSize <= 0 {
					t.Error("SampleSize should be positive")
				}
				if cfg.HoldoutSize <= 0 {
					t.Error("HoldoutSize should be positive")
				}
			}
		})
	}
}

func TestLoad_BrokerList(t *testing.T) {
	if err := os.Setenv("KAFKA_BROKERS", "a:9092, b:9092 ,c:9092"); err != nil {
		t.Fatalf("failed to set KAFKA_BROKERS: %v", err)
	}
	defer func() {
		if err := os.Unsetenv("KAFKA_BROKERS"); err != nil {
			t.Logf("failed to unset KAFKA_BROKERS: %v", err)
		}
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	want := []string{"a:9092", "b:9092", "c:9092"}
	if len(cfg.KafkaBrokers) != len(want) {
		t.Fatalf("expected %d brokers, got %d", len(want), len(cfg.KafkaBrokers))
	}
	for i, b := range want {
		if cfg.KafkaBrokers[i] != b {
			t.Errorf("broker[%d] = %q, want %q", i, cfg.KafkaBrokers[i], b)
		}
	}
}

func TestConfigValidation(t *testing.T) {
	valid := func() *Config {
		return &Config{
			ServiceName:       "test",
			InputSource:       InputSourceFile,
			InputPath:         "games.ndjson",
			ReportDir:         "reports",
			SampleSize:        10,
			HoldoutSize:       100,
			AnalysisWorkers:   4,
			Significance:      0.05,
			MinRecords:        100,
			MinSeeds:          10,
			CollectorDedupTTL: time.Hour,
		}
	}

	if err := valid().validate(); err != nil {
		t.Errorf("validate() should not fail for valid config: %v", err)
	}

	// Test invalid configurations
	mutations := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty service name", func(c *Config) { c.ServiceName = "" }},
		{"unknown input source", func(c *Config) { c.InputSource = "ftp" }},
		{"file source without path", func(c *Config) { c.InputPath = "" }},
		{"empty report dir", func(c *Config) { c.ReportDir = "" }},
		{"zero sample size", func(c *Config) { c.SampleSize = 0 }},
		{"zero holdout size", func(c *Config) { c.HoldoutSize = 0 }},
		{"zero workers", func(c *Config) { c.AnalysisWorkers = 0 }},
		{"significance too high", func(c *Config) { c.Significance = 1.0 }},
		{"significance too low", func(c *Config) { c.Significance = 0 }},
		{"zero min records", func(c *Config) { c.MinRecords = 0 }},
		{"min seeds below two", func(c *Config) { c.MinSeeds = 1 }},
		{"negative max records", func(c *Config) { c.CollectorMaxRecords = -5 }},
		{"zero dedup ttl", func(c *Config) { c.CollectorDedupTTL = 0 }},
	}

	for _, tt := range mutations {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			if err := cfg.validate(); err == nil {
				t.Errorf("validate() should fail for %s", tt.name)
			}
		})
	}
}

func TestGetEnvHelpers(t *testing.T) {
	// Test getEnv
	if err := os.Setenv("TEST_STRING", "test_value"); err != nil {
		t.Fatalf("failed to set TEST_STRING: %v", err)
	}
	defer func() {
		if err := os.Unsetenv("TEST_STRING"); err != nil {
			t.Logf("failed to unset TEST_STRING: %v", err)
		}
	}()

	if got := getEnv("TEST_STRING", "default"); got != "test_value" {
		t.Errorf("getEnv() = %v, want %v", got, "test_value")
	}

	if got := getEnv("NONEXISTENT", "default"); got != "default" {
		t.Errorf("getEnv() = %v, want %v", got, "default")
	}

	// Test getEnvInt
	if err := os.Setenv("TEST_INT", "42"); err != nil {
		t.Fatalf("failed to set TEST_INT: %v", err)
	}
	defer func() {
		if err := os.Unsetenv("TEST_INT"); err != nil {
			t.Logf("failed to unset TEST_INT: %v", err)
		}
	}()

	if got := getEnvInt("TEST_INT", 0); got != 42 {
		t.Errorf("getEnvInt() = %v, want %v", got, 42)
	}

	if got := getEnvInt("NONEXISTENT", 99); got != 99 {
		t.Errorf("getEnvInt() = %v, want %v", got, 99)
	}

	// Test getEnvFloat
	if err := os.Setenv("TEST_FLOAT", "3.14"); err != nil {
		t.Fatalf("failed to set TEST_FLOAT: %v", err)
	}
	defer func() {
		if err := os.Unsetenv("TEST_FLOAT"); err != nil {
			t.Logf("failed to unset TEST_FLOAT: %v", err)
		}
	}()

	if got := getEnvFloat("TEST_FLOAT", 0.0); got != 3.14 {
		t.Errorf("getEnvFloat() = %v, want %v", got, 3.14)
	}

	// Test getEnvBool
	if err := os.Setenv("TEST_BOOL", "false"); err != nil {
		t.Fatalf("failed to set TEST_BOOL: %v", err)
	}
	defer func() {
		if err := os.Unsetenv("TEST_BOOL"); err != nil {
			t.Logf("failed to unset TEST_BOOL: %v", err)
		}
	}()

	if got := getEnvBool("TEST_BOOL", true); got != false {
		t.Errorf("getEnvBool() = %v, want false", got)
	}

	if got := getEnvBool("NONEXISTENT", true); got != true {
		t.Errorf("getEnvBool() = %v, want true", got)
	}

	// Test getEnvDuration
	if err := os.Setenv("TEST_DURATION", "30s"); err != nil {
		t.Fatalf("failed to set TEST_DURATION: %v", err)
	}
	defer func() {
		if err := os.Unsetenv("TEST_DURATION"); err != nil {
			t.Logf("failed to unset TEST_DURATION: %v", err)
		}
	}()

	if got := getEnvDuration("TEST_DURATION", 0); got != 30*time.Second {
		t.Errorf("getEnvDuration() = %v, want %v", got, 30*time.Second)
	}
}
