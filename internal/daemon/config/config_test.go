// internal/daemon/config/config_test.go
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/waglayla/waglayla-supervisor/internal/daemon/types"
)

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()

	if s.Revision != Revision {
		t.Errorf("expected revision %q, got %q", Revision, s.Revision)
	}
	if s.Node.Kind != types.NodeKindDisabled {
		t.Errorf("expected node kind disabled, got %q", s.Node.Kind)
	}
	if s.Node.ConnectionKind != types.ConnectionPublicServerRandom {
		t.Errorf("expected public-server-random, got %q", s.Node.ConnectionKind)
	}
	if s.Developer.LogLevel != "info" {
		t.Errorf("expected log_level 'info', got %q", s.Developer.LogLevel)
	}
	if err := Validate(s); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestLoaderMissingFile(t *testing.T) {
	s, err := NewLoader(t.TempDir(), "").Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Node.Kind != types.NodeKindDisabled || s.Initialized {
		t.Errorf("expected defaults, got %+v", s.Node)
	}
}

func TestLoaderLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	content := `
revision = "` + Revision + `"
initialized = true
language_code = "de"

[node]
kind = "integrated-daemon"
enable_grpc = false
enable_wrpc_borsh = true
data_dir_enable = true
data_dir = "./data"

[bridge]
extranonce_size = 2
block_wait_time = "5s"
`
	if err := os.WriteFile(filepath.Join(tmpDir, "waglayla-supervisor.toml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := NewLoader(tmpDir, "").Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !s.Initialized {
		t.Error("expected initialized true")
	}
	if s.LanguageCode != "de" {
		t.Errorf("expected language_code 'de', got %q", s.LanguageCode)
	}
	if s.Node.Kind != types.NodeKindIntegratedDaemon {
		t.Errorf("expected integrated-daemon, got %q", s.Node.Kind)
	}
	if s.Node.EnableGrpc {
		t.Error("expected enable_grpc false")
	}
	if !s.Node.EnableWrpcBorsh {
		t.Error("expected enable_wrpc_borsh true")
	}
	if s.Node.DataDir != "./data" {
		t.Errorf("expected data_dir './data', got %q", s.Node.DataDir)
	}
	// Unset fields keep defaults.
	if !s.Node.EnableUpnp {
		t.Error("expected enable_upnp default true")
	}
	if s.Bridge.ExtranonceSize != 2 {
		t.Errorf("expected extranonce_size 2, got %d", s.Bridge.ExtranonceSize)
	}
	if s.Bridge.SharesPerMin != 20 {
		t.Errorf("expected shares_per_min default 20, got %d", s.Bridge.SharesPerMin)
	}
}

func TestLoaderRevisionMismatch(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "custom.toml")
	content := `
revision = "1"
initialized = true

[node]
kind = "remote"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := NewLoader(tmpDir, path).Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Initialized || s.Node.Kind != types.NodeKindDisabled {
		t.Errorf("stale revision must yield defaults, got initialized=%v kind=%q", s.Initialized, s.Node.Kind)
	}
}

func TestLoaderMalformedFallsBackToDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	content := "revision = \"" + Revision + "\"\n[node]\nkind = \n"
	if err := os.WriteFile(filepath.Join(tmpDir, "waglayla-supervisor.toml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := NewLoader(tmpDir, "").Load()
	if err != nil {
		t.Fatalf("malformed document must not be an error: %v", err)
	}
	if s.Node.Kind != types.NodeKindDisabled {
		t.Errorf("expected defaults, got kind %q", s.Node.Kind)
	}
}

func TestLoaderEnvOverrides(t *testing.T) {
	t.Setenv(EnvNodeKind, "remote")
	t.Setenv(EnvWrpcURL, "ws://node.example:14110")
	t.Setenv(EnvEnableBridge, "1")
	t.Setenv(EnvLogLevel, "debug")

	s, err := NewLoader(t.TempDir(), "").Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Node.Kind != types.NodeKindRemote {
		t.Errorf("expected remote, got %q", s.Node.Kind)
	}
	if s.Node.WrpcURL != "ws://node.example:14110" {
		t.Errorf("unexpected wrpc_url %q", s.Node.WrpcURL)
	}
	if !s.Node.EnableBridge {
		t.Error("expected enable_bridge true")
	}
	if s.Developer.LogLevel != "debug" {
		t.Errorf("expected log level debug, got %q", s.Developer.LogLevel)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Settings)
		wantErr string
	}{
		{"valid", func(*Settings) {}, ""},
		{"bad log level", func(s *Settings) { s.Developer.LogLevel = "trace" }, "invalid log_level"},
		{"bad node kind", func(s *Settings) { s.Node.Kind = "docker" }, "unknown node kind"},
		{"bad encoding", func(s *Settings) { s.Node.WrpcEncoding = "cbor" }, "invalid wrpc_encoding"},
		{"empty data dir", func(s *Settings) { s.Node.DataDirEnable = true }, ErrDataDirEmpty.Error()},
		{"extranonce", func(s *Settings) { s.Bridge.ExtranonceSize = 4 }, "extranonce_size"},
		{"custom grpc", func(s *Settings) { s.Node.GrpcInterface = NetworkInterface{Kind: InterfaceCustom} }, "custom is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.modify(s)
			err := Validate(s)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateBridgeWrapsSentinel(t *testing.T) {
	b := DefaultBridgeSettings()
	b.SharesPerMin = 0
	if err := ValidateBridge(b); !errors.Is(err, ErrInvalidBridgeSettings) {
		t.Errorf("expected ErrInvalidBridgeSettings, got %v", err)
	}
}

func TestValidateDataDir(t *testing.T) {
	tmpDir := t.TempDir()

	if err := ValidateDataDir(NodeSettings{DataDirEnable: true, DataDir: filepath.Join(tmpDir, "node")}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	err := ValidateDataDir(NodeSettings{DataDirEnable: true, DataDir: filepath.Join(tmpDir, "missing", "node")})
	if !errors.Is(err, ErrDataDirNotFound) {
		t.Errorf("expected ErrDataDirNotFound, got %v", err)
	}
}

func TestNetworkInterfaceAddress(t *testing.T) {
	tests := []struct {
		iface NetworkInterface
		want  string
	}{
		{NetworkInterface{Kind: InterfaceLocal}, "127.0.0.1:12110"},
		{NetworkInterface{Kind: InterfaceAny}, "0.0.0.0:12110"},
		{NetworkInterface{Kind: InterfaceCustom, Custom: "10.0.0.5"}, "10.0.0.5:12110"},
		{NetworkInterface{Kind: InterfaceCustom, Custom: "10.0.0.5:9000"}, "10.0.0.5:9000"},
	}
	for _, tt := range tests {
		if got := tt.iface.Address(types.DefaultGrpcPort); got != tt.want {
			t.Errorf("Address(%+v) = %q, want %q", tt.iface, got, tt.want)
		}
	}
}

func TestStoreDebounce(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "waglayla-supervisor.toml")
	bridgePath := filepath.Join(tmpDir, "bridge", "config.yaml")

	st := NewStore(StoreConfig{Path: path, BridgePath: bridgePath, Debounce: 100 * time.Millisecond})

	s := DefaultSettings()
	for i := 0; i < 10; i++ {
		s.LanguageCode = string(rune('a' + i))
		st.Request(s)
		time.Sleep(5 * time.Millisecond)
	}

	deadline := time.Now().Add(2 * time.Second)
	for st.Writes() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(200 * time.Millisecond)

	if got := st.Writes(); got != 1 {
		t.Fatalf("expected exactly one write, got %d", got)
	}

	loaded, err := NewLoader(tmpDir, "").Load()
	if err != nil {
		t.Fatal(err)
	}
	if loaded.LanguageCode != "j" {
		t.Errorf("expected the latest settings to be written, got language %q", loaded.LanguageCode)
	}

	b, err := ReadBridgeConfig(bridgePath)
	if err != nil {
		t.Fatalf("bridge document not written: %v", err)
	}
	if b != s.Bridge {
		t.Errorf("bridge document mismatch: %+v", b)
	}
}

func TestStoreCloseFlushes(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "settings.toml")
	st := NewStore(StoreConfig{Path: path})

	st.Request(DefaultSettings())
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected settings written on close: %v", err)
	}

	st.Request(DefaultSettings())
	if st.Writes() != 1 {
		t.Errorf("requests after close must be ignored")
	}
}
