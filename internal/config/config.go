// Package config provides unified configuration loading for the converter.
// Supports YAML files, environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the converter.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Output        OutputConfig        `yaml:"output"`
	Resize        ResizeConfig        `yaml:"resize"`
	PDF           PDFConfig           `yaml:"pdf"`
	DOCX          DOCXConfig          `yaml:"docx"`
	Fetch         FetchConfig         `yaml:"fetch"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
	MaxUploadBytes   int64         `yaml:"max_upload_bytes"`
	AllowedOrigins   []string      `yaml:"allowed_origins"`
}

// OutputConfig controls where the CLI writes produced files.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// ResizeConfig holds resize/compress pipeline settings.
type ResizeConfig struct {
	DefaultQuality float64 `yaml:"default_quality"`
	Interpolation  string  `yaml:"interpolation"` // nearest, bilinear, catmullrom, lanczos3
	FileName       string  `yaml:"file_name"`
	MaxPixels      int64   `yaml:"max_pixels"` // bounds both the decoded source and the target surface
}

// PDFConfig holds the images->PDF placement and PDF->images rendering settings.
// Placement is in millimetres on the page.
type PDFConfig struct {
	PageSize    string  `yaml:"page_size"`
	ImageX      float64 `yaml:"image_x"`
	ImageY      float64 `yaml:"image_y"`
	ImageWidth  float64 `yaml:"image_width"`
	ImageHeight float64 `yaml:"image_height"`
	RenderScale float64 `yaml:"render_scale"`
}

// DOCXConfig holds images->DOCX settings.
type DOCXConfig struct {
	ImageWidthPx  int      `yaml:"image_width_px"`
	ImageHeightPx int      `yaml:"image_height_px"`
	AllowedTypes  []string `yaml:"allowed_types"`
	MaxPartBytes  int64    `yaml:"max_part_bytes"`
	MaxMediaBytes int64    `yaml:"max_media_bytes"`
}

// FetchConfig holds settings for resolving images referenced by documents.
type FetchConfig struct {
	Timeout        time.Duration `yaml:"timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
	MaxParallel    int           `yaml:"max_parallel"`
	// AllowRemote follows pictures a document links to by URL. Only public
	// addresses are dialled even when enabled.
	AllowRemote    bool          `yaml:"allow_remote"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	ServiceName string `yaml:"service_name"`
}

// Load reads configuration from a YAML file and applies environment overrides.
// A .env file in the working directory is loaded first when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration matching the behavior of the web tool.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8090,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     60 * time.Second,
			IdleTimeout:      120 * time.Second,
			RequestTimeout:   60 * time.Second,
			GracefulShutdown: 10 * time.Second,
			MaxUploadBytes:   64 << 20,
			AllowedOrigins:   []string{"*"},
		},
		Output: OutputConfig{
			Dir: ".",
		},
		Resize: ResizeConfig{
			DefaultQuality: 0.92,
			Interpolation:  "bilinear",
			FileName:       "compressed-image.jpg",
			MaxPixels:      100_000_000,
		},
		PDF: PDFConfig{
			PageSize:    "A4",
			ImageX:      10,
			ImageY:      10,
			ImageWidth:  180,
			ImageHeight: 160,
			RenderScale: 2,
		},
		DOCX: DOCXConfig{
			ImageWidthPx:  400,
			ImageHeightPx: 300,
			AllowedTypes:  []string{"image/png", "image/jpeg"},
			MaxPartBytes:  32 << 20,
			MaxMediaBytes: 256 << 20,
		},
		Fetch: FetchConfig{
			Timeout:        30 * time.Second,
			MaxRetries:     3,
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     5 * time.Second,
			MaxParallel:    4,
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "console",
			ServiceName: "file-converter",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Resize.DefaultQuality < 0 || c.Resize.DefaultQuality > 1 {
		return fmt.Errorf("resize.default_quality must be between 0 and 1, got %v", c.Resize.DefaultQuality)
	}

	switch c.Resize.Interpolation {
	case "nearest", "bilinear", "catmullrom", "lanczos3":
	default:
		return fmt.Errorf("invalid resize interpolation: %s", c.Resize.Interpolation)
	}

	if strings.TrimSpace(c.Resize.FileName) == "" {
		return fmt.Errorf("resize.file_name is required")
	}

	if c.Resize.MaxPixels < 1 {
		return fmt.Errorf("resize.max_pixels must be positive")
	}

	if c.PDF.ImageWidth <= 0 || c.PDF.ImageHeight <= 0 {
		return fmt.Errorf("pdf image size must be positive")
	}

	if c.PDF.RenderScale <= 0 || c.PDF.RenderScale > 10 {
		return fmt.Errorf("pdf.render_scale must be in (0, 10], got %v", c.PDF.RenderScale)
	}

	if c.DOCX.ImageWidthPx <= 0 || c.DOCX.ImageHeightPx <= 0 {
		return fmt.Errorf("docx image size must be positive")
	}

	if len(c.DOCX.AllowedTypes) == 0 {
		return fmt.Errorf("docx.allowed_types must not be empty")
	}

	if c.DOCX.MaxPartBytes < 1 || c.DOCX.MaxMediaBytes < 1 {
		return fmt.Errorf("docx part limits must be positive")
	}

	if c.Fetch.MaxRetries < 0 {
		return fmt.Errorf("fetch.max_retries must not be negative")
	}

	if c.Fetch.MaxParallel < 1 {
		return fmt.Errorf("fetch.max_parallel must be at least 1")
	}

	return nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("OUTPUT_DIR"); v != "" {
		cfg.Output.Dir = v
	}

	if v := os.Getenv("RESIZE_INTERPOLATION"); v != "" {
		cfg.Resize.Interpolation = v
	}

	if v := os.Getenv("RENDER_SCALE"); v != "" {
		if scale, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.PDF.RenderScale = scale
		}
	}

	if v := os.Getenv("FETCH_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Fetch.MaxRetries = n
		}
	}

	if v := os.Getenv("FETCH_ALLOW_REMOTE"); v != "" {
		if allow, err := strconv.ParseBool(v); err == nil {
			cfg.Fetch.AllowRemote = allow
		}
	}

	if v := os.Getenv("RESIZE_MAX_PIXELS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Resize.MaxPixels = n
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}
