package main

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.UseTWAP {
		t.Error("use twap: defaults on")
	}
	if cfg.TWAPRecords != 5 {
		t.Errorf("twap records: got %d, want 5", cfg.TWAPRecords)
	}
	if cfg.PersistFlushTimeout != 10*time.Millisecond {
		t.Errorf("flush timeout: got %s, want 10ms", cfg.PersistFlushTimeout)
	}
	if cfg.MetricsAddr != ":9100" {
		t.Errorf("metrics addr: got %q, want :9100", cfg.MetricsAddr)
	}
}

func TestDefaultConfigFromEnv(t *testing.T) {
	t.Setenv("VAULT_USE_TWAP", "true")
	t.Setenv("VAULT_TWAP_RECORDS", "12")
	t.Setenv("VAULT_PERSIST_FLUSH_TIMEOUT_MS", "250")
	t.Setenv("VAULT_METRICS_ADDR", ":19100")

	cfg := DefaultConfig()

	if !cfg.UseTWAP {
		t.Error("use twap: env not honored")
	}
	if cfg.TWAPRecords != 12 {
		t.Errorf("twap records: got %d, want 12", cfg.TWAPRecords)
	}
	if cfg.PersistFlushTimeout != 250*time.Millisecond {
		t.Errorf("flush timeout: got %s, want 250ms", cfg.PersistFlushTimeout)
	}
	if cfg.MetricsAddr != ":19100" {
		t.Errorf("metrics addr: got %q, want :19100", cfg.MetricsAddr)
	}
}

func TestEnvBoolOrDefault(t *testing.T) {
	t.Setenv("VAULT_TEST_BOOL", "not-a-bool")
	if envBoolOrDefault("VAULT_TEST_BOOL", true) != true {
		t.Error("malformed value: want the default")
	}
	t.Setenv("VAULT_TEST_BOOL", "1")
	if envBoolOrDefault("VAULT_TEST_BOOL", false) != true {
		t.Error("truthy value: want true")
	}
}
