// Package pdfrenderer converts single PDF pages into raster images.
//
// Two implementations share the same contract: FitzRenderer renders
// in-process through MuPDF, CairoRenderer shells out to poppler's
// pdftocairo. The pipeline falls back from one to the other per page.
package pdfrenderer

import (
	"context"
	"fmt"
	"image"
)

// ColorMode selects the pixel format of rendered pages.
type ColorMode string

const (
	ColorRGB  ColorMode = "rgb"
	ColorGray ColorMode = "gray"
)

// RenderRequest describes one page render. Value type, no identity.
type RenderRequest struct {
	PageIndex int // zero-based
	DPI       int
	ColorMode ColorMode
}

// RasterImage is the pixel result of rendering one page.
type RasterImage struct {
	PageIndex int
	Image     image.Image
}

// Renderer converts one page of a PDF file into a raster image.
// Implementations must be safe for concurrent RenderPage calls and must
// never mutate the source file.
type Renderer interface {
	// RenderPage renders the page upright as a viewer would see it,
	// honoring the page's intrinsic rotation, at
	// ceil(widthPoints*dpi/72) x ceil(heightPoints*dpi/72) pixels.
	RenderPage(ctx context.Context, pdfPath string, req RenderRequest) (*RasterImage, error)

	// Close cleans up any resources used by the renderer
	Close() error
}

func (r RenderRequest) validate() error {
	if r.PageIndex < 0 {
		return fmt.Errorf("page index %d is negative", r.PageIndex)
	}
	if r.DPI <= 0 {
		return fmt.Errorf("DPI must be positive, got %d", r.DPI)
	}
	return nil
}
