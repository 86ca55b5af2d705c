package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Default values
	DefaultPort           = 8080
	DefaultHost           = "127.0.0.1"
	DefaultLogLevel       = "info"
	DefaultMaxFileSize    = 100 * 1024 * 1024 // 100MB
	DefaultReferenceWidth = 600.0
	DefaultFontSize       = 12.0
	DefaultDateLayout     = "01/02/2006"

	// Directory permissions
	DefaultDirPerm = 0o750
)

// Config holds all configuration for the PDF signing MCP server
type Config struct {
	// Server configuration
	Mode string // "server" or "stdio"
	Host string
	Port int

	// PDF configuration
	PDFDirectory string
	MaxFileSize  int64 // Maximum PDF file size in bytes

	// Stamping configuration. ReferenceWidth is the width of the editing
	// viewport that field percentages and default sizes were produced in;
	// it has to match the placement UI.
	ReferenceWidth float64
	FontSize       float64
	DateLayout     string
	Batch          bool

	// Application configuration
	Version    string
	ServerName string
	LogLevel   string
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		// Fall back to a relative path when the working directory is unknown
		currentDir = "."
	}

	return &Config{
		Mode:           ModeStdio, // Default to stdio mode for MCP compatibility
		Host:           DefaultHost,
		Port:           DefaultPort,
		PDFDirectory:   currentDir,
		MaxFileSize:    DefaultMaxFileSize,
		ReferenceWidth: DefaultReferenceWidth,
		FontSize:       DefaultFontSize,
		DateLayout:     DefaultDateLayout,
		Batch:          false,
		Version:        "1.0.0",
		ServerName:     "mcp-pdf-signer",
		LogLevel:       DefaultLogLevel,
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

	// Resolve the PDF directory to an absolute path
	if cfg.PDFDirectory != "" {
		if expandedPath, err := filepath.Abs(cfg.PDFDirectory); err == nil {
			cfg.PDFDirectory = expandedPath
		}
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	// Environment variables use the MCP_PDF_ prefix, e.g. MCP_PDF_REFERENCEWIDTH
	viper.SetEnvPrefix("MCP_PDF")
	viper.AutomaticEnv()

	// Register defaults so unset flags and variables fall back to them
	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("dir", cfg.PDFDirectory)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("maxfilesize", cfg.MaxFileSize)
	viper.SetDefault("referencewidth", cfg.ReferenceWidth)
	viper.SetDefault("fontsize", cfg.FontSize)
	viper.SetDefault("datelayout", cfg.DateLayout)
	viper.SetDefault("batch", cfg.Batch)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Server mode: 'stdio' for MCP standard I/O, 'server' for HTTP server")
	pflag.String("host", cfg.Host, "Server host address (server mode only)")
	pflag.Int("port", cfg.Port, "Server port (server mode only)")
	pflag.String("dir", cfg.PDFDirectory, "Directory containing the PDF files to sign")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Int64("maxfilesize", cfg.MaxFileSize, "Maximum PDF file size in bytes")
	pflag.Float64("referencewidth", cfg.ReferenceWidth, "Width of the field placement viewport in display units")
	pflag.Float64("fontsize", cfg.FontSize, "Default font size for text fields in points")
	pflag.String("datelayout", cfg.DateLayout, "Go time layout for date fields without a value")
	pflag.Bool("batch", cfg.Batch, "Apply all fields of a finishing run to a single loaded document")
}

var flagKeys = []string{
	"mode", "host", "port", "dir", "loglevel", "maxfilesize",
	"referencewidth", "fontsize", "datelayout", "batch",
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
		fmt.Fprintf(os.Stderr, "\nMCP PDF Signer - A Model Context Protocol server that places and burns "+
			"signature, initial, stamp, date, text and checkbox fields into PDF files\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                   # stdio mode, current directory (default)\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --dir=/path/to/contracts          # stdio mode with custom directory\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --referencewidth=800 --batch      # wider placement viewport, single pass\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  MCP_PDF_MODE            Server mode\n")
		fmt.Fprintf(os.Stderr, "  MCP_PDF_HOST            Server host\n")
		fmt.Fprintf(os.Stderr, "  MCP_PDF_PORT            Server port\n")
		fmt.Fprintf(os.Stderr, "  MCP_PDF_DIR             PDF directory\n")
		fmt.Fprintf(os.Stderr, "  MCP_PDF_LOGLEVEL        Log level\n")
		fmt.Fprintf(os.Stderr, "  MCP_PDF_MAXFILESIZE     Maximum file size\n")
		fmt.Fprintf(os.Stderr, "  MCP_PDF_REFERENCEWIDTH  Placement viewport width\n")
		fmt.Fprintf(os.Stderr, "  MCP_PDF_FONTSIZE        Default font size\n")
		fmt.Fprintf(os.Stderr, "  MCP_PDF_DATELAYOUT      Date layout\n")
		fmt.Fprintf(os.Stderr, "  MCP_PDF_BATCH           Single pass finishing\n")
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
	cfg.PDFDirectory = viper.GetString("dir")
	cfg.LogLevel = viper.GetString("loglevel")
	cfg.MaxFileSize = viper.GetInt64("maxfilesize")
	cfg.ReferenceWidth = viper.GetFloat64("referencewidth")
	cfg.FontSize = viper.GetFloat64("fontsize")
	cfg.DateLayout = viper.GetString("datelayout")
	cfg.Batch = viper.GetBool("batch")
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

	// Validate PDF directory
	if c.PDFDirectory == "" {
		return errors.New("PDF directory cannot be empty")
	}

	// Create the PDF directory if it doesn't exist
	if _, err := os.Stat(c.PDFDirectory); os.IsNotExist(err) {
		if err := os.MkdirAll(c.PDFDirectory, DefaultDirPerm); err != nil {
			return fmt.Errorf("cannot create PDF directory %s: %w", c.PDFDirectory, err)
		}
	} else if err != nil {
		return fmt.Errorf("cannot access PDF directory %s: %w", c.PDFDirectory, err)
	}

	// Validate max file size
	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	// Validate stamping settings
	if !positiveFinite(c.ReferenceWidth) {
		return errors.New("reference width must be a positive finite number")
	}

	if !positiveFinite(c.FontSize) {
		return errors.New("font size must be a positive finite number")
	}

	// Validate date layout
	if err := validateDateLayout(c.DateLayout); err != nil {
		return err
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

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// validateDateLayout rejects layouts that format a known date to the layout
// itself, which means they contain no reference time elements.
func validateDateLayout(layout string) error {
	if layout == "" {
		return errors.New("date layout cannot be empty")
	}
	probe := time.Date(2001, time.March, 4, 5, 6, 7, 0, time.UTC)
	if probe.Format(layout) == layout {
		return fmt.Errorf("date layout %q contains no date elements", layout)
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

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, PDFDirectory: %s, LogLevel: %s, MaxFileSize: %d, "+
		"ReferenceWidth: %g, FontSize: %g, DateLayout: %s, Batch: %t}",
		c.Mode, c.Host, c.Port, c.PDFDirectory, c.LogLevel, c.MaxFileSize,
		c.ReferenceWidth, c.FontSize, c.DateLayout, c.Batch)
}

// IsServerMode returns true if the server is running in HTTP server mode
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the server is running in stdio mode
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
