package engine

import (
	"bytes"
	"fmt"
	"os"

	"codeberg.org/go-pdf/fpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// WriteErrorKind classifies document-level write failures.
type WriteErrorKind int

const (
	// IOFailure means the output file could not be created or moved.
	IOFailure WriteErrorKind = iota
	// EncodingFailure means the PDF could not be assembled or validated.
	EncodingFailure
)

func (k WriteErrorKind) String() string {
	if k == IOFailure {
		return "io failure"
	}
	return "encoding failure"
}

// WriteError is fatal for the current document. Any temporary output is
// discarded before it is returned.
type WriteError struct {
	Kind WriteErrorKind
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write output: %s: %v", e.Kind, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// BuildDocument assembles a new PDF with one page per raster, each page
// sized in points to the source page's visual dimensions and filled
// edge to edge by its image. The result carries no text objects.
//
// The document is written to a temporary sibling of outPath and renamed
// into place only after it has been optimized and validated, so a failed
// build never leaves a partial file at outPath.
func BuildDocument(pages []*PageRaster, outPath string) error {
	if len(pages) == 0 {
		return &WriteError{Kind: EncodingFailure, Err: fmt.Errorf("no pages to write")}
	}

	doc := fpdf.NewCustom(&fpdf.InitType{
		UnitStr: "pt",
		Size:    fpdf.SizeType{Wd: pages[0].WidthPt, Ht: pages[0].HeightPt},
	})
	doc.SetMargins(0, 0, 0)
	doc.SetAutoPageBreak(false, 0)

	for _, page := range pages {
		// Explicit width and height, so "P" is exact for landscape
		// pages too.
		doc.AddPageFormat("P", fpdf.SizeType{Wd: page.WidthPt, Ht: page.HeightPt})

		imageType := "PNG"
		if page.Format == "jpeg" {
			imageType = "JPG"
		}
		options := fpdf.ImageOptions{ImageType: imageType}
		name := fmt.Sprintf("page-%d", page.PageIndex)
		doc.RegisterImageOptionsReader(name, options, bytes.NewReader(page.Data))
		doc.ImageOptions(name, 0, 0, page.WidthPt, page.HeightPt, false, options, 0, "")
	}
	if err := doc.Error(); err != nil {
		return &WriteError{Kind: EncodingFailure, Err: err}
	}

	tempPath := outPath + ".tmp"
	tempFile, err := os.Create(tempPath)
	if err != nil {
		return &WriteError{Kind: IOFailure, Err: err}
	}
	if err := doc.Output(tempFile); err != nil {
		tempFile.Close()
		os.Remove(tempPath)
		return &WriteError{Kind: EncodingFailure, Err: err}
	}
	if err := tempFile.Close(); err != nil {
		os.Remove(tempPath)
		return &WriteError{Kind: IOFailure, Err: err}
	}

	// Optimize and validate in place before publishing, the same
	// garbage-collect-on-save the rasterizer has always done.
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.OptimizeFile(tempPath, "", conf); err != nil {
		os.Remove(tempPath)
		return &WriteError{Kind: EncodingFailure, Err: fmt.Errorf("optimize failed: %w", err)}
	}
	if err := api.ValidateFile(tempPath, conf); err != nil {
		os.Remove(tempPath)
		return &WriteError{Kind: EncodingFailure, Err: fmt.Errorf("validation failed: %w", err)}
	}

	if err := os.Rename(tempPath, outPath); err != nil {
		os.Remove(tempPath)
		return &WriteError{Kind: IOFailure, Err: err}
	}
	return nil
}
