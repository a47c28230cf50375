package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// PortEnvVar overrides the configured listen port when set
const PortEnvVar = "MINIHTTPD_PORT"

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	Static      StaticConfig      `yaml:"static"`
	Logging     LogConfig         `yaml:"logging"`
}

// ServerConfig contains settings for the listening socket and connection I/O
type ServerConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	ReadTimeout    int    `yaml:"read_timeout"`  // in seconds, 0 disables the deadline
	WriteTimeout   int    `yaml:"write_timeout"` // in seconds, 0 disables the deadline
	RecvBufferSize int    `yaml:"recv_buffer_size"`
	ChunkSize      int    `yaml:"chunk_size"`
}

// ConcurrencyConfig contains settings for concurrency control
type ConcurrencyConfig struct {
	MaxWorkers int `yaml:"max_workers"`
}

// StaticConfig controls how /static/ paths map onto the filesystem
type StaticConfig struct {
	Root           string `yaml:"root"`
	AllowTraversal bool   `yaml:"allow_traversal"`
}

// LogConfig contains settings for logging
type LogConfig struct {
	LogToFile   bool   `yaml:"log_to_file"`
	LogFilePath string `yaml:"log_file_path"`
	MaxSize     int    `yaml:"max_size"`    // maximum size in megabytes
	MaxBackups  int    `yaml:"max_backups"` // maximum number of old log files to retain
	MaxAge      int    `yaml:"max_age"`     // maximum number of days to retain old log files
	Compress    bool   `yaml:"compress"`    // compress determines if the rotated log files should be compressed
}

// LoadDefault returns a configuration with default values
func LoadDefault() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			ReadTimeout:    30,
			WriteTimeout:   30,
			RecvBufferSize: 4096,
			ChunkSize:      4096,
		},
		Concurrency: ConcurrencyConfig{
			MaxWorkers: 256,
		},
		Static: StaticConfig{
			Root:           ".",
			AllowTraversal: false,
		},
		Logging: LogConfig{
			LogToFile:   false,
			LogFilePath: "minihttpd.log",
			MaxSize:     10,
			MaxBackups:  3,
			MaxAge:      28,
			Compress:    true,
		},
	}
}

// Load reads configuration from a file and merges it with default values
func Load(configPath string) (*Config, error) {
	cfg := LoadDefault()

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Port 0 is a valid setting, so presence decides rather than the zero value
	var explicit struct {
		Server struct {
			Port *int `yaml:"port"`
		} `yaml:"server"`
	}
	if err := yaml.Unmarshal(data, &explicit); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Merge server configuration
	if fileCfg.Server.Host != "" {
		cfg.Server.Host = fileCfg.Server.Host
	}
	if explicit.Server.Port != nil {
		cfg.Server.Port = *explicit.Server.Port
	}
	if fileCfg.Server.ReadTimeout > 0 {
		cfg.Server.ReadTimeout = fileCfg.Server.ReadTimeout
	}
	if fileCfg.Server.WriteTimeout > 0 {
		cfg.Server.WriteTimeout = fileCfg.Server.WriteTimeout
	}
	if fileCfg.Server.RecvBufferSize > 0 {
		cfg.Server.RecvBufferSize = fileCfg.Server.RecvBufferSize
	}
	if fileCfg.Server.ChunkSize > 0 {
		cfg.Server.ChunkSize = fileCfg.Server.ChunkSize
	}

	// Timeouts can be switched off explicitly with a negative value in the file
	if fileCfg.Server.ReadTimeout < 0 {
		cfg.Server.ReadTimeout = 0
	}
	if fileCfg.Server.WriteTimeout < 0 {
		cfg.Server.WriteTimeout = 0
	}

	// Merge concurrency configuration
	if fileCfg.Concurrency.MaxWorkers > 0 {
		cfg.Concurrency.MaxWorkers = fileCfg.Concurrency.MaxWorkers
	}

	// Merge static configuration
	if fileCfg.Static.Root != "" {
		cfg.Static.Root = fileCfg.Static.Root
	}
	if fileCfg.Static.AllowTraversal {
		cfg.Static.AllowTraversal = fileCfg.Static.AllowTraversal
	}

	// Merge logging configuration
	if fileCfg.Logging.LogToFile {
		cfg.Logging.LogToFile = fileCfg.Logging.LogToFile
	}
	if fileCfg.Logging.LogFilePath != "" {
		cfg.Logging.LogFilePath = fileCfg.Logging.LogFilePath
	}
	if fileCfg.Logging.MaxSize > 0 {
		cfg.Logging.MaxSize = fileCfg.Logging.MaxSize
	}
	if fileCfg.Logging.MaxBackups > 0 {
		cfg.Logging.MaxBackups = fileCfg.Logging.MaxBackups
	}
	if fileCfg.Logging.MaxAge > 0 {
		cfg.Logging.MaxAge = fileCfg.Logging.MaxAge
	}
	if fileCfg.Logging.Compress {
		cfg.Logging.Compress = fileCfg.Logging.Compress
	}

	return cfg, nil
}

// LoadOrDefault attempts to load configuration from a file
// If the file doesn't exist or can't be parsed, it returns default configuration
func LoadOrDefault(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to load config from %s: %v\n", configPath, err)
		fmt.Fprintf(os.Stderr, "Using default configuration\n")
		cfg = LoadDefault()
	}
	return cfg
}

// ApplyEnv applies environment overrides on top of file and default values.
// An unparseable value leaves cfg unchanged and is reported as an error.
func ApplyEnv(cfg *Config) error {
	v := os.Getenv(PortEnvVar)
	if v == "" {
		return nil
	}
	port, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", PortEnvVar, v, err)
	}
	cfg.Server.Port = port
	return nil
}

// Validate checks the configuration for values the server cannot run with
func (c *Config) Validate() error {
	// Port 0 asks the kernel for an ephemeral port
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Server.RecvBufferSize < 64 {
		return fmt.Errorf("recv_buffer_size must be at least 64, got %d", c.Server.RecvBufferSize)
	}
	if c.Server.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.Server.ChunkSize)
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if c.Concurrency.MaxWorkers <= 0 {
		return fmt.Errorf("max_workers must be positive, got %d", c.Concurrency.MaxWorkers)
	}
	if c.Static.Root == "" {
		return fmt.Errorf("static root must not be empty")
	}
	return nil
}

// Address returns the host:port pair the server listens on
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// ReadTimeoutDuration returns the receive deadline, or zero when disabled
func (c *Config) ReadTimeoutDuration() time.Duration {
	return time.Duration(c.Server.ReadTimeout) * time.Second
}

// WriteTimeoutDuration returns the send deadline, or zero when disabled
func (c *Config) WriteTimeoutDuration() time.Duration {
	return time.Duration(c.Server.WriteTimeout) * time.Second
}
