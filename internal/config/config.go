package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/a3tai/mcp-form-reader/internal/classifier"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Default values
	DefaultPort        = 8080
	DefaultHost        = "127.0.0.1"
	DefaultLogLevel    = "info"
	DefaultMaxFileSize = 20 * 1024 * 1024 // 20MB
	DefaultSettle      = 400 * time.Millisecond

	// Directory permissions
	DefaultDirPerm = 0o750

	// EnvPrefix prefixes every environment override
	EnvPrefix = "MCP_FORM"
)

// Config holds all configuration for the form reader MCP server
type Config struct {
	// Server configuration
	Mode string // "server" or "stdio"
	Host string
	Port int

	// FormDirectory holds the HTML and PDF forms the file tools may read
	FormDirectory string

	// RulesFile is an optional YAML file of extra label rules
	RulesFile string
	// DatabasePath enables the observation store when set
	DatabasePath string
	// ChromeURL is a DevTools URL; empty launches a local headless browser
	ChromeURL string
	// SettleDelay is how long the recorder waits after a submit-like click
	SettleDelay time.Duration
	// Weights are the classifier's base confidences and boosts
	Weights classifier.Weights

	// Application configuration
	Version     string
	ServerName  string
	LogLevel    string
	MaxFileSize int64 // Maximum form file size in bytes
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		// Fallback to current directory if working directory cannot be determined
		currentDir = "."
	}

	return &Config{
		Mode:          ModeStdio, // Default to stdio mode for MCP compatibility
		Host:          DefaultHost,
		Port:          DefaultPort,
		FormDirectory: currentDir,
		SettleDelay:   DefaultSettle,
		Weights:       classifier.DefaultWeights(),
		Version:       "1.0.0",
		ServerName:    "mcp-form-reader",
		LogLevel:      DefaultLogLevel,
		MaxFileSize:   DefaultMaxFileSize,
	}
}

// LoadFromFlags parses command line flags and returns a configuration
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	// Check for version flag before parsing
	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	populateConfigFromViper(cfg)

	// Expand paths if needed
	for _, p := range []*string{&cfg.FormDirectory, &cfg.RulesFile, &cfg.DatabasePath} {
		if *p == "" {
			continue
		}
		if expandedPath, err := filepath.Abs(*p); err == nil {
			*p = expandedPath
		}
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// flagKeys lists every key shared by viper and pflag
var flagKeys = []string{
	"mode", "host", "port", "dir", "loglevel", "maxfilesize",
	"rules", "db", "chrome", "settle",
	"weight-autocomplete", "weight-type", "weight-name", "weight-label",
	"boost-agreement", "boost-section",
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	viper.SetEnvPrefix(EnvPrefix)
	// MCP_FORM_WEIGHT_NAME maps to weight-name
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("dir", cfg.FormDirectory)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("maxfilesize", cfg.MaxFileSize)
	viper.SetDefault("rules", cfg.RulesFile)
	viper.SetDefault("db", cfg.DatabasePath)
	viper.SetDefault("chrome", cfg.ChromeURL)
	viper.SetDefault("settle", cfg.SettleDelay)
	viper.SetDefault("weight-autocomplete", cfg.Weights.Autocomplete)
	viper.SetDefault("weight-type", cfg.Weights.Type)
	viper.SetDefault("weight-name", cfg.Weights.Name)
	viper.SetDefault("weight-label", cfg.Weights.Label)
	viper.SetDefault("boost-agreement", cfg.Weights.Agreement)
	viper.SetDefault("boost-section", cfg.Weights.Section)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Server mode: 'stdio' for MCP standard I/O, 'server' for HTTP/SSE server")
	pflag.String("host", cfg.Host, "Server host address (server mode only)")
	pflag.Int("port", cfg.Port, "Server port (server mode only)")
	pflag.String("dir", cfg.FormDirectory, "Directory containing HTML and PDF forms")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Int64("maxfilesize", cfg.MaxFileSize, "Maximum form file size in bytes")
	pflag.String("rules", cfg.RulesFile, "YAML file with extra label rules")
	pflag.String("db", cfg.DatabasePath, "SQLite file for committed observations (empty disables)")
	pflag.String("chrome", cfg.ChromeURL, "DevTools websocket URL (empty launches headless Chrome)")
	pflag.Duration("settle", cfg.SettleDelay, "Delay between a submit-like click and the recorder commit")
	pflag.Float64("weight-autocomplete", cfg.Weights.Autocomplete, "Confidence of an autocomplete match")
	pflag.Float64("weight-type", cfg.Weights.Type, "Confidence of an input type match")
	pflag.Float64("weight-name", cfg.Weights.Name, "Confidence of a name/id match")
	pflag.Float64("weight-label", cfg.Weights.Label, "Confidence of a label match")
	pflag.Float64("boost-agreement", cfg.Weights.Agreement, "Boost when another signal agrees")
	pflag.Float64("boost-section", cfg.Weights.Section, "Boost from a matching section title")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	for _, key := range flagKeys {
		_ = viper.BindPFlag(key, pflag.Lookup(key))
	}
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nMCP Form Reader - A Model Context Protocol server that understands web and PDF forms\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                          "+
			"# stdio mode, current directory (default)\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --dir=/path/to/forms                     "+
			"# stdio mode with custom directory\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --db=~/.forms/observations.db            "+
			"# persist committed observations\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=server --host=0.0.0.0 --port=8081 # server on all interfaces\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  MCP_FORM_MODE        Server mode\n")
		fmt.Fprintf(os.Stderr, "  MCP_FORM_HOST        Server host\n")
		fmt.Fprintf(os.Stderr, "  MCP_FORM_PORT        Server port\n")
		fmt.Fprintf(os.Stderr, "  MCP_FORM_DIR         Form directory\n")
		fmt.Fprintf(os.Stderr, "  MCP_FORM_LOGLEVEL    Log level\n")
		fmt.Fprintf(os.Stderr, "  MCP_FORM_MAXFILESIZE Maximum file size\n")
		fmt.Fprintf(os.Stderr, "  MCP_FORM_RULES       Label rules file\n")
		fmt.Fprintf(os.Stderr, "  MCP_FORM_DB          Observation database\n")
		fmt.Fprintf(os.Stderr, "  MCP_FORM_CHROME      DevTools URL\n")
		fmt.Fprintf(os.Stderr, "  MCP_FORM_SETTLE      Recorder settle delay\n")
		fmt.Fprintf(os.Stderr, "  MCP_FORM_WEIGHT_*    Classifier weights (AUTOCOMPLETE, TYPE, NAME, LABEL)\n")
		fmt.Fprintf(os.Stderr, "  MCP_FORM_BOOST_*     Classifier boosts (AGREEMENT, SECTION)\n")
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return fmt.Errorf("version requested")
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.FormDirectory = viper.GetString("dir")
	cfg.LogLevel = viper.GetString("loglevel")
	cfg.MaxFileSize = viper.GetInt64("maxfilesize")
	cfg.RulesFile = viper.GetString("rules")
	cfg.DatabasePath = viper.GetString("db")
	cfg.ChromeURL = viper.GetString("chrome")
	cfg.SettleDelay = viper.GetDuration("settle")
	cfg.Weights.Autocomplete = viper.GetFloat64("weight-autocomplete")
	cfg.Weights.Type = viper.GetFloat64("weight-type")
	cfg.Weights.Name = viper.GetFloat64("weight-name")
	cfg.Weights.Label = viper.GetFloat64("weight-label")
	cfg.Weights.Agreement = viper.GetFloat64("boost-agreement")
	cfg.Weights.Section = viper.GetFloat64("boost-section")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate mode
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	// Validate port range (only for server mode)
	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	// Validate form directory
	if c.FormDirectory == "" {
		return errors.New("form directory cannot be empty")
	}

	// Check if form directory exists, create if it doesn't
	if _, err := os.Stat(c.FormDirectory); os.IsNotExist(err) {
		if err := os.MkdirAll(c.FormDirectory, DefaultDirPerm); err != nil {
			return fmt.Errorf("cannot create form directory %s: %w", c.FormDirectory, err)
		}
	} else if err != nil {
		return fmt.Errorf("cannot access form directory %s: %w", c.FormDirectory, err)
	}

	// Validate max file size
	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	if c.SettleDelay < 0 {
		return errors.New("settle delay cannot be negative")
	}

	if c.RulesFile != "" {
		if info, err := os.Stat(c.RulesFile); err != nil {
			return fmt.Errorf("cannot access rules file %s: %w", c.RulesFile, err)
		} else if info.IsDir() {
			return fmt.Errorf("rules file %s is a directory", c.RulesFile)
		}
	}

	if err := c.Weights.Validate(); err != nil {
		return fmt.Errorf("invalid classifier weights: %w", err)
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	return nil
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// PersistenceEnabled reports whether committed observations go to SQLite
func (c *Config) PersistenceEnabled() bool {
	return c.DatabasePath != ""
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, FormDirectory: %s, LogLevel: %s, MaxFileSize: %d, DB: %q, Settle: %s}",
		c.Mode, c.Host, c.Port, c.FormDirectory, c.LogLevel, c.MaxFileSize, c.DatabasePath, c.SettleDelay)
}

// IsServerMode returns true if the server is running in HTTP server mode
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the server is running in stdio mode
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
