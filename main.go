package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	config "github.com/drummonds/godetext/config"
	engine "github.com/drummonds/godetext/engine"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// injectGlobals injects all of our globals into their packages
func injectGlobals(logger *slog.Logger) {
	Logger = logger
	config.Logger = Logger
	engine.Logger = Logger
}

func main() {
	inPath := flag.String("in", "", "input PDF file (required, never modified)")
	outPath := flag.String("out", "", "output PDF path (default: <input>-notext.pdf)")
	exportPNG := flag.Bool("png", false, "export pages as PNG images instead of rebuilding a PDF")
	pngDir := flag.String("png-dir", ".", "directory for PNG export mode")
	flag.Parse()

	cfg, logger := config.Setup()
	injectGlobals(logger)

	if *inPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: godetext -in input.pdf [-out output.pdf] [-png [-png-dir dir]]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if *outPath == "" {
		base := strings.TrimSuffix(*inPath, filepath.Ext(*inPath))
		*outPath = base + "-notext.pdf"
	}

	if err := engine.StartupChecks(cfg, *outPath); err != nil {
		Logger.Error("Startup checks failed", "error", err)
		os.Exit(1)
	}

	pipeline, err := engine.New(cfg)
	if err != nil {
		Logger.Error("Unable to create pipeline", "error", err)
		os.Exit(1)
	}
	defer pipeline.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var result *engine.Result
	if *exportPNG {
		result, err = pipeline.ExportImages(ctx, *inPath, *pngDir)
	} else {
		result, err = pipeline.Run(ctx, *inPath, *outPath)
	}
	if err != nil {
		Logger.Error("Run failed", "input", *inPath, "error", err)
	}

	switch result.Outcome {
	case engine.Done:
		fmt.Printf("Done: %s (%d pages, text layer present: %t)\n", result.Output, len(result.Pages), result.HadTextLayer)
	case engine.PartialSuccess:
		fmt.Printf("Partial success: %s (placeholder pages: %v)\n", result.Output, result.FailedPages())
		os.Exit(2)
	case engine.Aborted:
		fmt.Fprintf(os.Stderr, "Aborted: no output written for %s\n", *inPath)
		os.Exit(1)
	}
}
