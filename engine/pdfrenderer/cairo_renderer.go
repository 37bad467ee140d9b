package pdfrenderer

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

// CairoRenderer implements page rendering by invoking poppler's
// pdftocairo as an external process. It is the fallback path when the
// in-process renderer is unavailable or fails on a page.
type CairoRenderer struct {
	toolPath string
}

// NewCairoRenderer creates a pdftocairo-backed renderer. toolPath may be
// empty, in which case the tool is looked up on PATH.
func NewCairoRenderer(toolPath string) (*CairoRenderer, error) {
	if toolPath == "" {
		found, err := exec.LookPath("pdftocairo")
		if err != nil {
			return nil, &RenderError{Kind: ToolUnavailable, Err: fmt.Errorf("pdftocairo not found on PATH: %w", err)}
		}
		toolPath = found
	} else {
		info, err := os.Stat(toolPath)
		if err != nil {
			return nil, &RenderError{Kind: ToolUnavailable, Err: fmt.Errorf("pdftocairo not found: %w", err)}
		}
		if info.IsDir() {
			return nil, &RenderError{Kind: ToolUnavailable, Err: fmt.Errorf("pdftocairo path %s is a directory", toolPath)}
		}
	}
	return &CairoRenderer{toolPath: toolPath}, nil
}

// RenderPage renders one page by extracting it with pdftocairo into a
// temporary PNG and reading it back. pdftocairo applies page rotation
// and renders at -r DPI, matching the in-process renderer's geometry.
func (r *CairoRenderer) RenderPage(ctx context.Context, pdfPath string, req RenderRequest) (*RasterImage, error) {
	if err := req.validate(); err != nil {
		return nil, &RenderError{Kind: ToolFailed, Page: req.PageIndex, Err: err}
	}

	tempDir, err := os.MkdirTemp("", "godetext-*")
	if err != nil {
		return nil, &RenderError{Kind: ToolFailed, Page: req.PageIndex, Err: fmt.Errorf("failed to create temp directory: %w", err)}
	}
	defer os.RemoveAll(tempDir)

	// pdftocairo pages are 1-based; -singlefile drops the page suffix
	// from the output name.
	pageNum := strconv.Itoa(req.PageIndex + 1)
	outputBase := filepath.Join(tempDir, "page")
	args := []string{
		"-png",
		"-r", strconv.Itoa(req.DPI),
		"-f", pageNum,
		"-l", pageNum,
		"-singlefile",
	}
	if req.ColorMode == ColorGray {
		args = append(args, "-gray")
	}
	args = append(args, pdfPath, outputBase)

	cmd := exec.CommandContext(ctx, r.toolPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, &RenderError{Kind: Timeout, Page: req.PageIndex, Err: ctx.Err()}
		}
		return nil, &RenderError{Kind: ToolFailed, Page: req.PageIndex, Err: fmt.Errorf("pdftocairo failed: %w (stderr: %s)", err, stderr.String())}
	}

	outputPath := outputBase + ".png"
	data, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, &RenderError{Kind: ToolFailed, Page: req.PageIndex, Err: fmt.Errorf("pdftocairo produced no output: %w", err)}
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &RenderError{Kind: ToolFailed, Page: req.PageIndex, Err: fmt.Errorf("failed to decode pdftocairo output: %w", err)}
	}

	return &RasterImage{PageIndex: req.PageIndex, Image: img}, nil
}

// Close cleans up resources (no-op, each render uses its own temp dir)
func (r *CairoRenderer) Close() error {
	return nil
}
