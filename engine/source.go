package engine

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// PageInfo describes one source page's visual geometry.
type PageInfo struct {
	Index  int     // zero-based
	Width  float64 // visual width in points, rotation applied
	Height float64 // visual height in points, rotation applied
	Rotate int     // 0, 90, 180 or 270
}

// Source is a read-only inventory of the input document: page count and
// per-page geometry. The pixel content is read by the renderers.
type Source struct {
	Path  string
	Pages []PageInfo
}

// OpenError means the input could not be read as a PDF. Fatal, raised
// before any page work.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("open %s: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

// OpenSource reads the page inventory of a PDF file. The file itself is
// never modified.
func OpenSource(path string) (*Source, error) {
	ctx, err := api.ReadContextFile(path)
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}
	if ctx.PageCount == 0 {
		return nil, &OpenError{Path: path, Err: fmt.Errorf("document has no pages")}
	}

	src := &Source{Path: path, Pages: make([]PageInfo, 0, ctx.PageCount)}
	for pageNum := 1; pageNum <= ctx.PageCount; pageNum++ {
		_, _, inh, err := ctx.PageDict(pageNum, false)
		if err != nil {
			return nil, &OpenError{Path: path, Err: fmt.Errorf("page %d: %w", pageNum, err)}
		}

		box := inh.CropBox
		if box == nil {
			box = inh.MediaBox
		}
		if box == nil {
			return nil, &OpenError{Path: path, Err: fmt.Errorf("page %d has no size information", pageNum)}
		}

		width, height := box.Width(), box.Height()
		rotate := normalizeRotation(inh.Rotate)
		if rotate == 90 || rotate == 270 {
			// A viewer shows the page rotated, so the visual
			// dimensions are swapped.
			width, height = height, width
		}

		src.Pages = append(src.Pages, PageInfo{
			Index:  pageNum - 1,
			Width:  width,
			Height: height,
			Rotate: rotate,
		})
	}
	return src, nil
}

// PageCount returns the number of pages in the source document.
func (s *Source) PageCount() int {
	return len(s.Pages)
}

func normalizeRotation(rotate int) int {
	rotate %= 360
	if rotate < 0 {
		rotate += 360
	}
	// Round to the nearest legal value; PDF only allows multiples of 90.
	return (rotate / 90 * 90) % 360
}

// HasTextLayer reports whether any page of the document carries
// extractable text. Used to distinguish "text removed" from "nothing to
// remove" in the result.
func HasTextLayer(path string) (bool, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return false, fmt.Errorf("unable to open PDF for text probe: %w", err)
	}
	defer file.Close()

	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A page we cannot decode may still carry text; report
			// what we could read and move on.
			continue
		}
		if strings.TrimSpace(text) != "" {
			return true, nil
		}
	}
	return false, nil
}
