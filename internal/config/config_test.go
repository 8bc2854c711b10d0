package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultEventsConfigIsValid(t *testing.T) {
	if err := DefaultEventsConfig().Validate(); err != nil {
		t.Fatalf("default events config invalid: %v", err)
	}
}

func TestDefaultCSVConfigIsValid(t *testing.T) {
	if err := DefaultCSVConfig().Validate(); err != nil {
		t.Fatalf("default csv config invalid: %v", err)
	}
}

func TestLoadEvents_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "gwd.events.config.json")
	contents := `{
  "mqtt": {"hostname": "broker.example.com", "port": 8883},
  "sync": {"num_dirs_to_sync": 2, "s3": {"bucket": "gwdev", "prefix": "hw1/eventstore"}}
}`
	if err := os.WriteFile(configPath, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadEvents(configPath)
	if err != nil {
		t.Fatalf("LoadEvents: %v", err)
	}
	if cfg.MQTT.Hostname != "broker.example.com" {
		t.Errorf("hostname = %q, want broker.example.com", cfg.MQTT.Hostname)
	}
	if cfg.MQTT.Port != 8883 {
		t.Errorf("port = %d, want 8883", cfg.MQTT.Port)
	}
	if cfg.Sync.NumDirsToSync != 2 {
		t.Errorf("num_dirs_to_sync = %d, want 2", cfg.Sync.NumDirsToSync)
	}
	if got := cfg.Sync.S3.SyncedKey("20230310"); got != "gwdev/hw1/eventstore/20230310" {
		t.Errorf("SyncedKey = %q", got)
	}
	// Untouched keys keep their defaults.
	if cfg.MQTT.Topic != "gw/#" {
		t.Errorf("topic = %q, want gw/#", cfg.MQTT.Topic)
	}
	if cfg.Paths.ConfigPath != configPath {
		t.Errorf("resolved config path = %q, want %q", cfg.Paths.ConfigPath, configPath)
	}
}

func TestLoadEvents_EnvWinsOverFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "gwd.events.config.json")
	if err := os.WriteFile(configPath, []byte(`{"mqtt": {"hostname": "from-file"}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GWD_MQTT__HOSTNAME", "from-env")
	t.Setenv("GWD_SYNC__NUM_DIRS_TO_SYNC", "7")

	cfg, err := LoadEvents(configPath)
	if err != nil {
		t.Fatalf("LoadEvents: %v", err)
	}
	if cfg.MQTT.Hostname != "from-env" {
		t.Errorf("hostname = %q, want from-env", cfg.MQTT.Hostname)
	}
	if cfg.Sync.NumDirsToSync != 7 {
		t.Errorf("num_dirs_to_sync = %d, want 7", cfg.Sync.NumDirsToSync)
	}
}

func TestLoadEvents_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadEvents(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("LoadEvents: %v", err)
	}
	if cfg.MQTT.Hostname != "localhost" || cfg.MQTT.Port != 1883 {
		t.Errorf("unexpected mqtt defaults: %+v", cfg.MQTT)
	}
}

func TestEventsConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*EventsConfig)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *EventsConfig) {},
		},
		{
			name:    "bad port",
			mutate:  func(c *EventsConfig) { c.MQTT.Port = 70000 },
			wantErr: "lte",
		},
		{
			name:    "empty hostname",
			mutate:  func(c *EventsConfig) { c.MQTT.Hostname = "" },
			wantErr: "required",
		},
		{
			name:    "zero dirs to sync",
			mutate:  func(c *EventsConfig) { c.Sync.NumDirsToSync = 0 },
			wantErr: "gte",
		},
		{
			name: "max delay below min delay",
			mutate: func(c *EventsConfig) {
				c.MQTT.ReconnectMinDelay = 10
				c.MQTT.ReconnectMaxDelay = 5
			},
			wantErr: "reconnect_max_delay",
		},
		{
			name:    "bad log level",
			mutate:  func(c *EventsConfig) { c.Logging.Level = "loud" },
			wantErr: "oneof",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultEventsConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestCSVConfigValidate_UnknownDefaultScada(t *testing.T) {
	cfg := DefaultCSVConfig()
	cfg.DefaultScada = "pear"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "pear") {
		t.Fatalf("expected unknown scada error, got %v", err)
	}
}

func TestWriteThenLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "gwd.events.config.json")
	cfg := DefaultEventsConfig()
	cfg.Paths.ConfigPath = configPath
	cfg.Paths.DataDir = filepath.Join(dir, "data")
	cfg.Sync.S3.Bucket = "gwdev"

	if err := Write(configPath, cfg); err != nil {
		t.Fatalf("Write: %v", err)
	}
	loaded, err := LoadEvents(configPath)
	if err != nil {
		t.Fatalf("LoadEvents: %v", err)
	}
	if loaded.Sync.S3.Bucket != "gwdev" {
		t.Errorf("bucket = %q, want gwdev", loaded.Sync.S3.Bucket)
	}
	if loaded.Paths.DataDir != cfg.Paths.DataDir {
		t.Errorf("data dir = %q, want %q", loaded.Paths.DataDir, cfg.Paths.DataDir)
	}
}

func TestPathsLayout(t *testing.T) {
	p := Paths{ConfigPath: "/cfg/gwd.events.config.json", DataDir: "/data"}
	if got := p.StorePath(); got != filepath.Join("/data", "store") {
		t.Errorf("StorePath = %q", got)
	}
	if got := p.SnapPath("hw1.isone.me.freedom.apple.scada"); !strings.HasSuffix(got, ".snap.json") {
		t.Errorf("SnapPath = %q", got)
	}
	if got := p.ConfigDir(); got != "/cfg" {
		t.Errorf("ConfigDir = %q", got)
	}
}
