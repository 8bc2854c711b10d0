package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gojson "github.com/goccy/go-json"
	koanfjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix for environment variable overrides.
// GWD_MQTT__HOSTNAME overrides mqtt.hostname.
const EnvPrefix = "GWD_"

// LoadEvents loads the events configuration with layered precedence:
// defaults, then the JSON config file at configPath (if it exists), then
// environment variables. The resolved Paths.ConfigPath always reflects the
// path actually consulted.
func LoadEvents(configPath string) (*EventsConfig, error) {
	cfg := DefaultEventsConfig()
	if configPath == "" {
		configPath = cfg.Paths.ConfigPath
	}
	if err := load(cfg, configPath); err != nil {
		return nil, err
	}
	cfg.Paths.ConfigPath = configPath
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid events config: %w", err)
	}
	return cfg, nil
}

// LoadCSV loads the csv configuration with the same layering as LoadEvents.
func LoadCSV(configPath string) (*CSVConfig, error) {
	cfg := DefaultCSVConfig()
	if configPath == "" {
		configPath = cfg.Paths.ConfigPath
	}
	if err := load(cfg, configPath); err != nil {
		return nil, err
	}
	cfg.Paths.ConfigPath = configPath
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid csv config: %w", err)
	}
	return cfg, nil
}

func load(cfg any, configPath string) error {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(cfg, "koanf"), nil); err != nil {
		return fmt.Errorf("load defaults: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		if err := k.Load(file.Provider(configPath), koanfjson.Parser()); err != nil {
			return fmt.Errorf("load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return fmt.Errorf("load environment: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

// envTransform maps GWD_SYNC__NUM_DIRS_TO_SYNC to sync.num_dirs_to_sync.
// A double underscore separates nesting levels so that key names may
// themselves contain underscores.
func envTransform(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

// Write serializes cfg as indented JSON at path, creating parent
// directories. Used by the mkconfig commands.
func Write(path string, cfg any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := gojson.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
