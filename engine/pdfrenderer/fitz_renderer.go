package pdfrenderer

import (
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
)

// FitzRenderer implements page rendering using go-fitz (requires CGo and MuPDF)
type FitzRenderer struct {
}

// NewFitzRenderer creates a new Fitz-based page renderer
func NewFitzRenderer() (*FitzRenderer, error) {
	return &FitzRenderer{}, nil
}

// RenderPage renders one page of a PDF file to an image using go-fitz.
// Each call opens its own document handle, so concurrent calls on the
// same file are safe. MuPDF applies the page's /Rotate for us.
func (r *FitzRenderer) RenderPage(ctx context.Context, pdfPath string, req RenderRequest) (*RasterImage, error) {
	if err := req.validate(); err != nil {
		return nil, &RenderError{Kind: Unsupported, Page: req.PageIndex, Err: err}
	}

	type renderResult struct {
		img image.Image
		err error
	}

	// The CGo render cannot be interrupted; run it on its own goroutine
	// and let a timed-out call finish in the background, discarding the
	// result.
	done := make(chan renderResult, 1)
	go func() {
		doc, err := fitz.New(pdfPath)
		if err != nil {
			done <- renderResult{nil, &RenderError{Kind: Corrupt, Page: req.PageIndex, Err: fmt.Errorf("unable to open PDF document: %w", err)}}
			return
		}
		defer doc.Close()

		if req.PageIndex >= doc.NumPage() {
			done <- renderResult{nil, &RenderError{Kind: Unsupported, Page: req.PageIndex, Err: fmt.Errorf("page index out of range, document has %d pages", doc.NumPage())}}
			return
		}

		img, err := doc.ImageDPI(req.PageIndex, float64(req.DPI))
		if err != nil {
			done <- renderResult{nil, &RenderError{Kind: Unsupported, Page: req.PageIndex, Err: fmt.Errorf("unable to render page: %w", err)}}
			return
		}
		done <- renderResult{img, nil}
	}()

	select {
	case <-ctx.Done():
		return nil, &RenderError{Kind: Timeout, Page: req.PageIndex, Err: ctx.Err()}
	case res := <-done:
		if res.err != nil {
			return nil, res.err
		}
		img := res.img
		if req.ColorMode == ColorGray {
			img = imaging.Grayscale(img)
		}
		return &RasterImage{PageIndex: req.PageIndex, Image: img}, nil
	}
}

// Close cleans up resources (no-op for Fitz renderer as doc is closed per-render)
func (r *FitzRenderer) Close() error {
	return nil
}
