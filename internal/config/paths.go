package config

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// relativeAppDir is the directory used under the XDG config and state homes.
const relativeAppDir = "gridworks/debug-cli"

// Paths resolves the on-disk layout for one gwd sub-app. The config file
// lives under the XDG config home, everything else under the XDG state home:
//
//	~/.config/gridworks/debug-cli/<app>/gwd.<app>.config.json
//	~/.local/state/gridworks/debug-cli/<app>/...
type Paths struct {
	ConfigPath string `koanf:"config_path" json:"config_path"`
	DataDir    string `koanf:"data_dir"    json:"data_dir"`
}

// DefaultPaths returns the XDG-derived paths for the given sub-app
// ("events" or "csv").
func DefaultPaths(app string) Paths {
	return Paths{
		ConfigPath: filepath.Join(xdg.ConfigHome, relativeAppDir, app, "gwd."+app+".config.json"),
		DataDir:    filepath.Join(xdg.StateHome, relativeAppDir, app),
	}
}

// ConfigDir returns the directory containing the config file.
func (p Paths) ConfigDir() string { return filepath.Dir(p.ConfigPath) }

// StorePath returns the BadgerDB directory for the local event store.
func (p Paths) StorePath() string { return filepath.Join(p.DataDir, "store") }

// StatusDir returns the directory for per-source status documents.
func (p Paths) StatusDir() string { return filepath.Join(p.DataDir, "status") }

// SnapDir returns the directory for per-source snapshot documents.
func (p Paths) SnapDir() string { return filepath.Join(p.DataDir, "snap") }

// SnapPath returns the snapshot file path for one source.
func (p Paths) SnapPath(src string) string {
	return filepath.Join(p.SnapDir(), src+".snap.json")
}

// LogPath returns the log file used while the TUI owns the terminal.
func (p Paths) LogPath() string { return filepath.Join(p.DataDir, "events.log") }

// CSVPath returns the main CSV export path.
func (p Paths) CSVPath() string { return filepath.Join(p.DataDir, "events.csv") }

// SubAppDir returns a directory under the data dir, for per-scada output.
func (p Paths) SubAppDir(name string) string { return filepath.Join(p.DataDir, name) }

// MkDirs creates every directory the sub-app writes to.
func (p Paths) MkDirs() error {
	for _, dir := range []string{p.ConfigDir(), p.DataDir, p.StatusDir(), p.SnapDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}
