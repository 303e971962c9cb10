// Package config loads and validates the service configuration
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Conversion modes
const (
	// ModeInProcess runs the conversion engine inside the coordinator process
	ModeInProcess = "inprocess"
	// ModeIsolated runs the conversion engine in a separate worker process
	ModeIsolated = "isolated"
)

// Output methods
const (
	// OutputLocal keeps the archive in the output directory only
	OutputLocal = "local"
	// OutputRemote additionally uploads the archive to the configured durable storage
	OutputRemote = "remote"
)

// Upload backends
const (
	UploadNone = ""
	UploadDir  = "dir"
	UploadSFTP = "sftp"
)

// Database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config is the complete service configuration
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Log           LogConfig           `mapstructure:"log"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Preconversion PreconversionConfig `mapstructure:"preconversion"`
	Conversion    ConversionConfig    `mapstructure:"conversion"`
	Progress      ProgressConfig      `mapstructure:"progress"`
	Notify        NotifyConfig        `mapstructure:"notify"`
	ErrorCodes    ErrorCodes          `mapstructure:"error_codes"`
}

// ServerConfig configures the public API
type ServerConfig struct {
	Address string `mapstructure:"address"`
	// PublicContext is the externally visible base URL used for previewUrl and downloadUrl
	PublicContext string `mapstructure:"public_context"`
}

// DatabaseConfig configures the job store backend
type DatabaseConfig struct {
	Driver     string `mapstructure:"driver"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	User       string `mapstructure:"user"`
	Password   string `mapstructure:"password"`
	Name       string `mapstructure:"name"`
	SSLEnabled bool   `mapstructure:"ssl_enabled"`
	// Path is the database file for the sqlite driver
	Path string `mapstructure:"path"`
}

// LogConfig configures logging
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// StorageConfig configures where inputs and outputs live
type StorageConfig struct {
	InputPath  string `mapstructure:"input_path"`
	OutputPath string `mapstructure:"output_path"`
	// UseTempDir places the input and output docroot under the OS temp directory
	UseTempDir    bool         `mapstructure:"use_temp_dir"`
	DefaultOutput string       `mapstructure:"default_output"`
	Upload        UploadConfig `mapstructure:"upload"`
}

// UploadConfig selects and configures the durable storage backend
type UploadConfig struct {
	Type    string     `mapstructure:"type"`
	Dir     string     `mapstructure:"dir"`
	BaseURL string     `mapstructure:"base_url"`
	SFTP    SFTPConfig `mapstructure:"sftp"`
}

// SFTPConfig configures the SFTP uploader
type SFTPConfig struct {
	Address   string `mapstructure:"address"`
	User      string `mapstructure:"user"`
	Password  string `mapstructure:"password"`
	RemoteDir string `mapstructure:"remote_dir"`
	BaseURL   string `mapstructure:"base_url"`
	// KnownHosts is an OpenSSH known_hosts file used to verify the server key
	KnownHosts string `mapstructure:"known_hosts"`
}

// PreconversionConfig configures the office-to-PDF step
type PreconversionConfig struct {
	ToolPath    string        `mapstructure:"tool_path"`
	Timeout     time.Duration `mapstructure:"timeout"`
	ProfileRoot string        `mapstructure:"profile_root"`
}

// ConversionConfig configures the conversion engine and admission
type ConversionConfig struct {
	Mode              string        `mapstructure:"mode"`
	ConverterCommand  []string      `mapstructure:"converter_command"`
	WorkerCommand     []string      `mapstructure:"worker_command"`
	MaxDuration       time.Duration `mapstructure:"max_duration"`
	AbortGrace        time.Duration `mapstructure:"abort_grace"`
	AbortPollInterval time.Duration `mapstructure:"abort_poll_interval"`
	MemoryLimitMB     uint64        `mapstructure:"memory_limit_mb"`
	MaxConcurrent     int           `mapstructure:"max_concurrent"`
	MaxQueued         int           `mapstructure:"max_queued"`
}

// ProgressConfig configures the worker callback endpoint
type ProgressConfig struct {
	Address string `mapstructure:"address"`
}

// NotifyConfig configures the websocket status feed. An empty address disables it.
type NotifyConfig struct {
	Address string `mapstructure:"address"`
}

// Default returns the configuration used when nothing else is set
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:       ":8080",
			PublicContext: "http://localhost:8080",
		},
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			Host:   "localhost",
			Port:   5432,
			User:   "postgres",
			Name:   "docconv",
			Path:   "docconv.db",
		},
		Log: LogConfig{Level: "info"},
		Storage: StorageConfig{
			InputPath:     filepath.Join("docroot", "input"),
			OutputPath:    filepath.Join("docroot", "output"),
			DefaultOutput: OutputLocal,
		},
		Preconversion: PreconversionConfig{
			ToolPath: "soffice",
			Timeout:  60 * time.Second,
		},
		Conversion: ConversionConfig{
			Mode:              ModeInProcess,
			ConverterCommand:  []string{"buildvu"},
			WorkerCommand:     []string{"docconv", "worker"},
			MaxDuration:       30 * time.Minute,
			AbortGrace:        10 * time.Second,
			AbortPollInterval: time.Second,
			MaxConcurrent:     4,
		},
		Progress: ProgressConfig{
			Address: "127.0.0.1:1099",
		},
		ErrorCodes: DefaultErrorCodes(),
	}
}

// ResolvePaths applies UseTempDir and fills the preconversion profile root
func (c *Config) ResolvePaths() {
	if c.Storage.UseTempDir {
		docroot := filepath.Join(os.TempDir(), "docroot")
		c.Storage.InputPath = filepath.Join(docroot, "input")
		c.Storage.OutputPath = filepath.Join(docroot, "output")
	}
	if c.Preconversion.ProfileRoot == "" {
		c.Preconversion.ProfileRoot = filepath.Join(os.TempDir(), "docconv-profiles")
	}
}

// GetEnv retrieves the value of an environment variable with a fallback value if not set
func GetEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
