package engine

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/drummonds/godetext/config"
)

// StartupChecks performs all the checks to make sure a run can work
func StartupChecks(cfg config.Config, outPath string) error {
	if err := cfg.Validate(); err != nil {
		Logger.Error("Configuration invalid", "error", err)
		return err
	}
	fallbackToolChecks(cfg)
	return outputDirectoryChecks(outPath)
}

func fallbackToolChecks(cfg config.Config) {
	if cfg.PdftocairoPath == "" {
		Logger.Info("pdftocairo not configured, fallback rendering will be unavailable")
		return
	}

	toolInfo, err := os.Stat(cfg.PdftocairoPath)
	if err != nil {
		Logger.Warn("pdftocairo executable not found, fallback rendering will be disabled", "path", cfg.PdftocairoPath, "error", err)
		return
	}
	if toolInfo.IsDir() {
		Logger.Warn("pdftocairo path is a directory, not an executable, fallback rendering will be disabled", "path", cfg.PdftocairoPath)
		return
	}
	Logger.Info("pdftocairo executable found and validated", "path", cfg.PdftocairoPath)
}

// outputDirectoryChecks ensures the directory the output lands in exists
func outputDirectoryChecks(outPath string) error {
	dir := filepath.Dir(outPath)
	if dir == "" || dir == "." {
		return nil
	}

	dirInfo, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			Logger.Info("Creating output directory", "path", dir)
			if err := os.MkdirAll(dir, 0755); err != nil {
				Logger.Error("Failed to create output directory", "path", dir, "error", err)
				return err
			}
			return nil
		}
		Logger.Error("Error checking output directory", "path", dir, "error", err)
		return err
	}

	if !dirInfo.IsDir() {
		Logger.Error("Output path parent exists but is not a directory", "path", dir)
		return fmt.Errorf("output directory is not a directory: %s", dir)
	}
	return nil
}
