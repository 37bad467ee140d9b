package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// Defaults match the resolution/quality the tool was tuned for: legible
// output at a reasonable file size.
const (
	DefaultDPI         = 200
	DefaultJPEGQuality = 85
	MinDPI             = 72
	MaxDPI             = 600
)

// Renderer preference values.
const (
	PrimaryOnly         = "primary_only"
	PrimaryThenFallback = "primary_then_fallback"
	FallbackOnly        = "fallback_only"
)

// Page failure policy values.
const (
	FailureAbort       = "abort"
	FailurePlaceholder = "placeholder"
)

// Config contains all of the pipeline settings
type Config struct {
	ResolutionDPI      int
	ColorMode          string // "rgb" or "gray"
	ImageFormat        string // "jpeg" or "png"
	JPEGQuality        int
	OnPageFailure      string // "abort" or "placeholder"
	RendererPreference string
	PageTimeout        time.Duration
	RenderWorkers      int
	PdftocairoPath     string // empty when the fallback tool is unavailable
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intVal
}

// Setup loads configuration and returns Config and Logger
func Setup() (Config, *slog.Logger) {
	configLive := Config{}

	// Load .env file (silently ignore if doesn't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load("config.env")

	logger := setupLogging()
	Logger = logger

	// Rasterization configuration
	configLive.ResolutionDPI = getEnvInt("RESOLUTION_DPI", DefaultDPI)
	configLive.ColorMode = getEnv("COLOR_MODE", "rgb")
	configLive.ImageFormat = getEnv("IMAGE_FORMAT", "jpeg")
	configLive.JPEGQuality = getEnvInt("JPEG_QUALITY", DefaultJPEGQuality)

	// Pipeline configuration
	configLive.OnPageFailure = getEnv("ON_PAGE_FAILURE", FailureAbort)
	configLive.RendererPreference = getEnv("RENDERER_PREFERENCE", PrimaryThenFallback)
	configLive.PageTimeout = time.Duration(getEnvInt("PAGE_TIMEOUT_SECONDS", 60)) * time.Second
	configLive.RenderWorkers = getEnvInt("RENDER_WORKERS", 1)

	// Fallback renderer configuration
	pdftocairoPath := getEnv("PDFTOCAIRO_PATH", "")
	if pdftocairoPath == "" {
		if found, err := exec.LookPath("pdftocairo"); err == nil {
			pdftocairoPath = found
		}
	}
	if pdftocairoPath != "" {
		if _, err := os.Stat(pdftocairoPath); err == nil {
			logger.Info("pdftocairo found, fallback rendering enabled", "path", pdftocairoPath)
			configLive.PdftocairoPath = pdftocairoPath
		} else {
			logger.Warn("pdftocairo executable not found, fallback rendering disabled", "path", pdftocairoPath, "error", err)
		}
	} else {
		logger.Info("pdftocairo not configured, fallback rendering disabled")
	}

	logger.Info("Configuration loaded",
		"dpi", configLive.ResolutionDPI,
		"colorMode", configLive.ColorMode,
		"imageFormat", configLive.ImageFormat,
		"onPageFailure", configLive.OnPageFailure,
		"rendererPreference", configLive.RendererPreference)

	return configLive, logger
}

// Validate checks configuration values and rejects anything the pipeline
// cannot honor.
func (c Config) Validate() error {
	if c.ResolutionDPI < MinDPI || c.ResolutionDPI > MaxDPI {
		return fmt.Errorf("resolution %d DPI out of range [%d, %d]", c.ResolutionDPI, MinDPI, MaxDPI)
	}
	if c.ColorMode != "rgb" && c.ColorMode != "gray" {
		return fmt.Errorf("unknown color mode %q", c.ColorMode)
	}
	if c.ImageFormat != "jpeg" && c.ImageFormat != "png" {
		return fmt.Errorf("unknown image format %q", c.ImageFormat)
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("JPEG quality %d out of range [1, 100]", c.JPEGQuality)
	}
	switch c.OnPageFailure {
	case FailureAbort, FailurePlaceholder:
	default:
		return fmt.Errorf("unknown page failure policy %q", c.OnPageFailure)
	}
	switch c.RendererPreference {
	case PrimaryOnly, PrimaryThenFallback, FallbackOnly:
	default:
		return fmt.Errorf("unknown renderer preference %q", c.RendererPreference)
	}
	if c.RendererPreference == FallbackOnly && c.PdftocairoPath == "" {
		return fmt.Errorf("renderer preference is %s but pdftocairo is unavailable", FallbackOnly)
	}
	if c.PageTimeout <= 0 {
		return fmt.Errorf("page timeout must be positive, got %v", c.PageTimeout)
	}
	if c.RenderWorkers < 1 {
		return fmt.Errorf("render workers must be at least 1, got %d", c.RenderWorkers)
	}
	return nil
}

// setupLogging configures the application logger
func setupLogging() *slog.Logger {
	logLevel := getEnv("LOG_LEVEL", "info")
	var level slog.Level

	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handlerOptions := &slog.HandlerOptions{Level: level}

	logOutput := getEnv("LOG_OUTPUT", "stderr")
	var logWriter io.Writer

	switch logOutput {
	case "stdout":
		logWriter = os.Stdout
	case "stderr":
		logWriter = os.Stderr
	default:
		logPath, err := filepath.Abs(filepath.ToSlash(getEnv("LOG_FILE", "godetext.log")))
		if err != nil {
			fmt.Printf("Error creating log file path: %v\n", err)
			logWriter = os.Stderr
		} else {
			logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
			if err != nil {
				fmt.Printf("Failed to open log file: %v\n", err)
				logWriter = os.Stderr
			} else {
				logWriter = logFile
			}
		}
	}

	handler := slog.NewTextHandler(logWriter, handlerOptions)
	return slog.New(handler)
}
