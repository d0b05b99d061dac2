package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
site:
  id: "test-site"
  timezone: "Europe/London"
  location:
    latitude: 51.5
    longitude: -0.12
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
scheduler:
  tick_seconds: 10
  fire_window_seconds: 60
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "test-site" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "test-site")
	}
	if cfg.Site.Location.Latitude != 51.5 {
		t.Errorf("Latitude = %v, want 51.5", cfg.Site.Location.Latitude)
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if cfg.TickInterval() != 10*time.Second {
		t.Errorf("TickInterval() = %v, want 10s", cfg.TickInterval())
	}
	if cfg.Location().String() != "Europe/London" {
		t.Errorf("Location() = %q, want Europe/London", cfg.Location())
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_Defaults(t *testing.T) {
	configPath := writeConfig(t, `
site:
  id: "defaults"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Scheduler.TickSeconds != 15 {
		t.Errorf("TickSeconds default = %d, want 15", cfg.Scheduler.TickSeconds)
	}
	if cfg.Scheduler.FireWindowSeconds != 60 {
		t.Errorf("FireWindowSeconds default = %d, want 60", cfg.Scheduler.FireWindowSeconds)
	}
	if cfg.Presence.Topic != "hearth/presence/event" {
		t.Errorf("Presence.Topic default = %q", cfg.Presence.Topic)
	}
	if cfg.MQTT.Broker.ClientID != "hearth-core" {
		t.Errorf("ClientID default = %q, want hearth-core", cfg.MQTT.Broker.ClientID)
	}
}

func TestValidate_TickCadence(t *testing.T) {
	tests := []struct {
		name    string
		tick    int
		window  int
		wantErr bool
	}{
		{"valid fine cadence", 5, 60, false},
		{"valid at limit", 60, 60, false},
		{"too coarse", 90, 120, true},
		{"zero tick", 0, 60, true},
		{"window below tick", 30, 10, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Scheduler.TickSeconds = tt.tick
			cfg.Scheduler.FireWindowSeconds = tt.window

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr = %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_Timezone(t *testing.T) {
	cfg := defaultConfig()
	cfg.Site.Timezone = "Not/AZone"

	if err := cfg.Validate(); err == nil {
		t.Error("Validate() expected error for bad timezone, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	configPath := writeConfig(t, `
site:
  id: "env-test"
database:
  path: "/tmp/file-value.db"
`)

	t.Setenv("HEARTH_DATABASE_PATH", "/tmp/env-value.db")
	t.Setenv("HEARTH_MQTT_HOST", "broker.internal")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/env-value.db" {
		t.Errorf("Database.Path = %q, want env override", cfg.Database.Path)
	}
	if cfg.MQTT.Broker.Host != "broker.internal" {
		t.Errorf("MQTT.Broker.Host = %q, want broker.internal", cfg.MQTT.Broker.Host)
	}
}
