// Package config loads gwd configuration with koanf: struct defaults first,
// then an optional JSON config file, then GWD_-prefixed environment
// variables. Environment always wins.
package config

import (
	"fmt"
	"strings"
	"time"
)

// MQTTConfig holds the connection settings for the live event broker.
type MQTTConfig struct {
	Hostname          string        `koanf:"hostname"            json:"hostname"            validate:"required"`
	Port              int           `koanf:"port"                json:"port"                validate:"gte=1,lte=65535"`
	KeepaliveSeconds  int           `koanf:"keepalive"           json:"keepalive"           validate:"gte=0"`
	BindAddress       string        `koanf:"bind_address"        json:"bind_address"`
	Username          string        `koanf:"username"            json:"username"`
	Password          string        `koanf:"password"            json:"password"`
	Topic             string        `koanf:"topic"               json:"topic"               validate:"required"`

	// Reconnect delays are in seconds, fractional values allowed.
	ReconnectMinDelay float64 `koanf:"reconnect_min_delay" json:"reconnect_min_delay"`
	ReconnectMaxDelay float64 `koanf:"reconnect_max_delay" json:"reconnect_max_delay"`
}

// BrokerURL returns the paho broker URL for these settings.
func (c MQTTConfig) BrokerURL() string {
	return fmt.Sprintf("tcp://%s:%d", c.Hostname, c.Port)
}

// MinDelay returns the initial reconnect delay.
func (c MQTTConfig) MinDelay() time.Duration {
	return time.Duration(c.ReconnectMinDelay * float64(time.Second))
}

// MaxDelay returns the reconnect delay ceiling.
func (c MQTTConfig) MaxDelay() time.Duration {
	return time.Duration(c.ReconnectMaxDelay * float64(time.Second))
}

// Keepalive returns the MQTT keepalive interval.
func (c MQTTConfig) Keepalive() time.Duration {
	return time.Duration(c.KeepaliveSeconds) * time.Second
}

// S3Config identifies the event archive bucket.
type S3Config struct {
	Bucket  string `koanf:"bucket"  json:"bucket"`
	Prefix  string `koanf:"prefix"  json:"prefix"`
	Profile string `koanf:"profile" json:"profile"`
	Region  string `koanf:"region"  json:"region"`
}

// SubPrefix returns the object prefix for one day directory.
func (c S3Config) SubPrefix(dir string) string {
	return strings.TrimSuffix(c.Prefix, "/") + "/" + dir
}

// SyncedKey returns the human-readable bucket/prefix identifier used in
// sync lifecycle events.
func (c S3Config) SyncedKey(dir string) string {
	return c.Bucket + "/" + c.SubPrefix(dir)
}

// SyncConfig controls the S3 reconciliation pass.
type SyncConfig struct {
	S3            S3Config `koanf:"s3"               json:"s3"`
	NumDirsToSync int      `koanf:"num_dirs_to_sync" json:"num_dirs_to_sync" validate:"gte=1"`
	Concurrency   int      `koanf:"concurrency"      json:"concurrency"      validate:"gte=1"`
}

// TUIConfig tunes the live display.
type TUIConfig struct {
	DisplayedEvents  int `koanf:"displayed_events"   json:"displayed_events"   validate:"gte=1"`
	MaxSummaryWidth  int `koanf:"max_summary_width"  json:"max_summary_width"  validate:"gte=0"`
	UpdatesPerSecond int `koanf:"updates_per_second" json:"updates_per_second" validate:"gte=1"`
	FlushSeconds     int `koanf:"flush_seconds"      json:"flush_seconds"      validate:"gte=1"`
}

// LoggingConfig mirrors logging.Config for the config file.
type LoggingConfig struct {
	Level  string `koanf:"level"  json:"level"  validate:"oneof=trace debug info warn error disabled"`
	Format string `koanf:"format" json:"format" validate:"oneof=json console"`
}

// EventsConfig is the full configuration for `gwd events`.
type EventsConfig struct {
	Verbosity int           `koanf:"verbosity" json:"verbosity"`
	Snaps     []string      `koanf:"snaps"     json:"snaps"`
	Paths     Paths         `koanf:"paths"     json:"paths"`
	Sync      SyncConfig    `koanf:"sync"      json:"sync"`
	MQTT      MQTTConfig    `koanf:"mqtt"      json:"mqtt"`
	TUI       TUIConfig     `koanf:"tui"       json:"tui"`
	Logging   LoggingConfig `koanf:"logging"   json:"logging"`
}

// DefaultEventsConfig returns the defaults written by `gwd events mkconfig`.
func DefaultEventsConfig() *EventsConfig {
	return &EventsConfig{
		Verbosity: 0,
		Snaps:     []string{},
		Paths:     DefaultPaths("events"),
		Sync: SyncConfig{
			S3:            S3Config{},
			NumDirsToSync: 4,
			Concurrency:   3,
		},
		MQTT: MQTTConfig{
			Hostname:          "localhost",
			Port:              1883,
			KeepaliveSeconds:  60,
			Topic:             "gw/#",
			ReconnectMinDelay: 1,
			ReconnectMaxDelay: 120,
		},
		TUI: TUIConfig{
			DisplayedEvents:  45,
			MaxSummaryWidth:  90,
			UpdatesPerSecond: 4,
			FlushSeconds:     30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate applies struct tags plus the cross-field checks tags cannot
// express.
func (c *EventsConfig) Validate() error {
	if err := validateStruct(c); err != nil {
		return err
	}
	if c.MQTT.ReconnectMinDelay <= 0 {
		return fmt.Errorf("mqtt.reconnect_min_delay must be positive, got %v", c.MQTT.ReconnectMinDelay)
	}
	if c.MQTT.ReconnectMaxDelay < c.MQTT.ReconnectMinDelay {
		return fmt.Errorf("mqtt.reconnect_max_delay %v is below mqtt.reconnect_min_delay %v",
			c.MQTT.ReconnectMaxDelay, c.MQTT.ReconnectMinDelay)
	}
	return nil
}
