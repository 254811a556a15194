package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var envKeys = []string{
	"MCP_FORM_MODE", "MCP_FORM_HOST", "MCP_FORM_PORT", "MCP_FORM_DIR",
	"MCP_FORM_LOGLEVEL", "MCP_FORM_MAXFILESIZE", "MCP_FORM_RULES", "MCP_FORM_DB",
	"MCP_FORM_CHROME", "MCP_FORM_SETTLE", "MCP_FORM_WEIGHT_NAME", "MCP_FORM_BOOST_SECTION",
}

// loadWith runs LoadFromFlags against args and env, restoring global state after
func loadWith(t *testing.T, args []string, env map[string]string) (*Config, error) {
	t.Helper()
	originalArgs := os.Args
	t.Cleanup(func() {
		os.Args = originalArgs
		pflag.CommandLine = pflag.NewFlagSet(originalArgs[0], pflag.ExitOnError)
		viper.Reset()
	})

	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	for k, v := range env {
		t.Setenv(k, v)
	}

	os.Args = append([]string{"mcp-form-reader"}, args...)
	pflag.CommandLine = pflag.NewFlagSet(os.Args[0], pflag.ContinueOnError)
	viper.Reset()
	return LoadFromFlags()
}

func TestLoadFromFlags_Defaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := loadWith(t, []string{"--dir=" + dir}, nil)
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}

	if cfg.Mode != "stdio" {
		t.Errorf("LoadFromFlags() Mode = %v, want %v", cfg.Mode, "stdio")
	}
	if cfg.Port != 8080 {
		t.Errorf("LoadFromFlags() Port = %v, want %v", cfg.Port, 8080)
	}
	if cfg.SettleDelay != DefaultSettle {
		t.Errorf("LoadFromFlags() SettleDelay = %v, want %v", cfg.SettleDelay, DefaultSettle)
	}
	if cfg.Weights.Name != 0.75 {
		t.Errorf("LoadFromFlags() Weights.Name = %v, want %v", cfg.Weights.Name, 0.75)
	}
	if cfg.FormDirectory != dir {
		t.Errorf("LoadFromFlags() FormDirectory = %v, want %v", cfg.FormDirectory, dir)
	}
}

func TestLoadFromFlags_ValidFlags(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, cfg *Config)
	}{
		{
			name: "server mode with custom host and port",
			args: []string{"--mode=server", "--host=0.0.0.0", "--port=9090"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Address() != "0.0.0.0:9090" || !cfg.IsServerMode() {
					t.Errorf("LoadFromFlags() got %s", cfg)
				}
			},
		},
		{
			name: "debug logging",
			args: []string{"--loglevel=debug"},
			check: func(t *testing.T, cfg *Config) {
				if !cfg.IsDebug() {
					t.Errorf("LoadFromFlags() LogLevel = %v, want debug", cfg.LogLevel)
				}
			},
		},
		{
			name: "settle and weights",
			args: []string{"--settle=1500ms", "--weight-label=0.6", "--boost-agreement=0.05"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.SettleDelay != 1500*time.Millisecond {
					t.Errorf("LoadFromFlags() SettleDelay = %v", cfg.SettleDelay)
				}
				if cfg.Weights.Label != 0.6 || cfg.Weights.Agreement != 0.05 {
					t.Errorf("LoadFromFlags() Weights = %+v", cfg.Weights)
				}
			},
		},
		{
			name: "relative database path is made absolute",
			args: []string{"--db=obs.db", "--chrome=ws://127.0.0.1:9222/devtools/browser/x"},
			check: func(t *testing.T, cfg *Config) {
				if !filepath.IsAbs(cfg.DatabasePath) || filepath.Base(cfg.DatabasePath) != "obs.db" {
					t.Errorf("LoadFromFlags() DatabasePath = %v", cfg.DatabasePath)
				}
				if cfg.ChromeURL != "ws://127.0.0.1:9222/devtools/browser/x" {
					t.Errorf("LoadFromFlags() ChromeURL = %v", cfg.ChromeURL)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := loadWith(t, append(tt.args, "--dir="+t.TempDir()), nil)
			if err != nil {
				t.Fatalf("LoadFromFlags() unexpected error: %v", err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestLoadFromFlags_EnvironmentVariables(t *testing.T) {
	dir := t.TempDir()
	rules := filepath.Join(dir, "rules.yaml")
	if err := os.WriteFile(rules, []byte("rules: []\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadWith(t, nil, map[string]string{
		"MCP_FORM_MODE":          "server",
		"MCP_FORM_HOST":          "192.168.1.1",
		"MCP_FORM_PORT":          "3000",
		"MCP_FORM_DIR":           dir,
		"MCP_FORM_LOGLEVEL":      "warn",
		"MCP_FORM_RULES":         rules,
		"MCP_FORM_SETTLE":        "2s",
		"MCP_FORM_WEIGHT_NAME":   "0.7",
		"MCP_FORM_BOOST_SECTION": "0.2",
	})
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}

	if cfg.Mode != "server" || cfg.Host != "192.168.1.1" || cfg.Port != 3000 {
		t.Errorf("LoadFromFlags() server settings = %s", cfg)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LoadFromFlags() LogLevel = %v, want warn", cfg.LogLevel)
	}
	if cfg.RulesFile != rules {
		t.Errorf("LoadFromFlags() RulesFile = %v, want %v", cfg.RulesFile, rules)
	}
	if cfg.SettleDelay != 2*time.Second {
		t.Errorf("LoadFromFlags() SettleDelay = %v, want 2s", cfg.SettleDelay)
	}
	if cfg.Weights.Name != 0.7 || cfg.Weights.Section != 0.2 {
		t.Errorf("LoadFromFlags() Weights = %+v", cfg.Weights)
	}
}

func TestLoadFromFlags_FlagOverridesEnvironment(t *testing.T) {
	cfg, err := loadWith(t,
		[]string{"--mode=stdio", "--host=localhost", "--port=8888", "--dir=" + t.TempDir()},
		map[string]string{"MCP_FORM_MODE": "server", "MCP_FORM_HOST": "192.168.1.1", "MCP_FORM_PORT": "3000"})
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}
	if cfg.Mode != "stdio" || cfg.Host != "localhost" || cfg.Port != 8888 {
		t.Errorf("LoadFromFlags() flags should override env, got %s", cfg)
	}
}

func TestLoadFromFlags_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"mode", []string{"--mode=invalid"}, "mode must be either 'stdio' or 'server'"},
		{"port", []string{"--mode=server", "--port=99999"}, "port must be between 1 and 65535"},
		{"log level", []string{"--loglevel=invalid"}, "invalid log level"},
		{"weights", []string{"--weight-type=0.99"}, "invalid classifier weights"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadWith(t, append(tt.args, "--dir="+t.TempDir()), nil)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("LoadFromFlags() error = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFlags_VersionFlag(t *testing.T) {
	_, err := loadWith(t, []string{"--version"}, nil)
	if err == nil || err.Error() != "version requested" {
		t.Errorf("LoadFromFlags() error = %v, want 'version requested'", err)
	}
}
