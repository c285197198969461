// internal/daemon/config/loader.go
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"

	"github.com/waglayla/waglayla-supervisor/internal/daemon/types"
	"github.com/waglayla/waglayla-supervisor/internal/paths"
)

// Environment variable names
const (
	EnvNodeKind      = "WAGSUP_NODE_KIND"
	EnvNetwork       = "WAGSUP_NETWORK"
	EnvWrpcURL       = "WAGSUP_WRPC_URL"
	EnvWrpcEncoding  = "WAGSUP_WRPC_ENCODING"
	EnvEnableBridge  = "WAGSUP_ENABLE_BRIDGE"
	EnvDataDir       = "WAGSUP_DATA_DIR"
	EnvRAMScale      = "WAGSUP_RAM_SCALE"
	EnvLogLevel      = "WAGSUP_LOG_LEVEL"
	EnvMetricsListen = "WAGSUP_METRICS_LISTEN"
	EnvDaemonBinary  = "WAGSUP_DAEMON_BINARY"
)

// Loader loads the settings document from file, environment, and defaults.
type Loader struct {
	appDir       string
	settingsPath string // explicit settings path (empty = use default)
	logger       *slog.Logger
}

// NewLoader creates a new settings loader.
// appDir is the application directory holding the settings document.
// settingsPath is an explicit file path (empty = appDir/waglayla-supervisor.toml).
func NewLoader(appDir, settingsPath string) *Loader {
	return &Loader{
		appDir:       appDir,
		settingsPath: settingsPath,
		logger:       slog.Default(),
	}
}

// SetLogger sets the logger for the loader.
func (l *Loader) SetLogger(logger *slog.Logger) {
	l.logger = logger
}

// Path returns the settings document path.
func (l *Loader) Path() string {
	if l.settingsPath != "" {
		return l.settingsPath
	}
	return paths.SettingsPath(l.appDir)
}

// Load loads settings with priority: defaults < file < env.
// A missing file, a revision mismatch or a malformed document yields
// defaults; only an unreadable file is an error.
func (l *Loader) Load() (*Settings, error) {
	s := DefaultSettings()

	fileSettings, err := l.loadFile()
	if err != nil {
		return nil, err
	}

	if fileSettings != nil {
		mergeFileSettings(s, fileSettings)
	}

	applyEnvVars(s)

	return s, nil
}

// loadFile loads and parses the settings file. It returns nil when the
// document is absent, stale or unparsable.
func (l *Loader) loadFile() (*FileSettings, error) {
	path := l.Path()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	var fs FileSettings
	if err := toml.Unmarshal(data, &fs); err != nil {
		l.logger.Warn("settings document is malformed, using defaults",
			"path", path,
			"error", err)
		return nil, nil
	}

	if fs.Revision == nil || *fs.Revision != Revision {
		found := "<none>"
		if fs.Revision != nil {
			found = *fs.Revision
		}
		l.logger.Info("settings revision changed, using defaults",
			"path", path,
			"found", found,
			"want", Revision)
		return nil, nil
	}

	return &fs, nil
}

// applyEnvVars applies environment variable overrides to settings.
func applyEnvVars(s *Settings) {
	if v := os.Getenv(EnvNodeKind); v != "" {
		if k, err := types.ParseNodeKind(v); err == nil {
			s.Node.Kind = k
		}
	}
	if v := os.Getenv(EnvNetwork); v != "" {
		s.Node.Network = types.Network(v)
	}
	if v := os.Getenv(EnvWrpcURL); v != "" {
		s.Node.WrpcURL = v
	}
	if v := os.Getenv(EnvWrpcEncoding); v != "" {
		s.Node.WrpcEncoding = types.Encoding(v)
	}
	if v := os.Getenv(EnvEnableBridge); v != "" {
		s.Node.EnableBridge = v == "true" || v == "1"
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		s.Node.DataDirEnable = true
		s.Node.DataDir = v
	}
	if v := os.Getenv(EnvRAMScale); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			s.Node.RAMScale = f
		}
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		s.Developer.LogLevel = v
	}
	if v := os.Getenv(EnvMetricsListen); v != "" {
		s.Developer.MetricsListen = v
	}
	if v := os.Getenv(EnvDaemonBinary); v != "" {
		s.Developer.DaemonBinary = v
	}
}
