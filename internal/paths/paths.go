// Package paths provides centralized path management for the supervisor.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// Directory constants relative to the application directory.
const (
	BridgeDir = "bridge"
	LogsDir   = "logs"
)

// File name constants.
const (
	SettingsFile     = "waglayla-supervisor.toml"
	BridgeConfigFile = "config.yaml"
	HistoryFile      = "stats.db"
	SupervisorLog    = "supervisor.log"
	DaemonLog        = "waglaylad.log"
	BridgeLog        = "bridge.log"
	PIDFile          = "wagsupd.pid"
)

// BridgeBinaryName is the on-disk name of the materialised stratum bridge.
func BridgeBinaryName() string {
	if runtime.GOOS == "windows" {
		return "waglayla-bridge.exe"
	}
	return "waglayla-bridge"
}

// DaemonBinaryName is the executable name of the node daemon looked up in PATH
// or next to the launcher.
func DaemonBinaryName() string {
	if runtime.GOOS == "windows" {
		return "waglaylad.exe"
	}
	return "waglaylad"
}

const defaultAppDirName = "waglayla-supervisor"

// DefaultAppDir returns the OS-appropriate per-user application directory,
// falling back to a relative directory when none can be determined.
func DefaultAppDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, herr := os.UserHomeDir()
		if herr != nil {
			return "." + defaultAppDirName
		}
		return filepath.Join(home, "."+defaultAppDirName)
	}
	return filepath.Join(dir, defaultAppDirName)
}

func SettingsPath(appDir string) string {
	return filepath.Join(appDir, SettingsFile)
}

// BridgeConfigPath is written side-by-side with the settings document.
func BridgeConfigPath(appDir string) string {
	return filepath.Join(BridgeDirPath(appDir), BridgeConfigFile)
}

func BridgeDirPath(appDir string) string {
	return filepath.Join(appDir, BridgeDir)
}

func BridgeBinaryPath(appDir string) string {
	return filepath.Join(BridgeDirPath(appDir), BridgeBinaryName())
}

// DaemonDefaultDataDir is where the node daemon keeps its data when it is
// started without --appdir.
func DaemonDefaultDataDir() string {
	if runtime.GOOS == "windows" {
		if dir := os.Getenv("LOCALAPPDATA"); dir != "" {
			return filepath.Join(dir, "rusty-waglayla")
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".rusty-waglayla"
	}
	return filepath.Join(home, ".rusty-waglayla")
}

func LogsPath(appDir string) string {
	return filepath.Join(appDir, LogsDir)
}

// PIDPath is held by a running supervisor for its whole lifetime.
func PIDPath(appDir string) string {
	return filepath.Join(appDir, PIDFile)
}

func HistoryPath(appDir string) string {
	return filepath.Join(appDir, HistoryFile)
}

// EnsureDir creates dir with 0755 permissions if needed.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}
