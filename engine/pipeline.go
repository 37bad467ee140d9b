package engine

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"log/slog"
	"math"
	"path/filepath"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/oklog/ulid/v2"

	"github.com/drummonds/godetext/config"
	"github.com/drummonds/godetext/engine/pdfrenderer"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// PageStatus is the terminal per-page outcome of rendering.
type PageStatus int

const (
	// StatusSuccess means the primary renderer produced the page.
	StatusSuccess PageStatus = iota
	// StatusFallbackUsed means the fallback renderer produced the page.
	StatusFallbackUsed
	// StatusFailed means no renderer produced the page.
	StatusFailed
)

func (s PageStatus) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFallbackUsed:
		return "fallback"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// Outcome is the per-document result of a pipeline run.
type Outcome int

const (
	// Done means every page rendered and the output file was written.
	Done Outcome = iota
	// PartialSuccess means the output was written but some pages are
	// placeholders.
	PartialSuccess
	// Aborted means no output file was produced.
	Aborted
)

func (o Outcome) String() string {
	switch o {
	case Done:
		return "done"
	case PartialSuccess:
		return "partial success"
	case Aborted:
		return "aborted"
	}
	return "unknown"
}

// PageResult is one page's terminal status.
type PageResult struct {
	Index  int
	Status PageStatus
	Err    error // set when Status is StatusFailed
}

// Result reports one pipeline run.
type Result struct {
	RunID        ulid.ULID
	Input        string
	Output       string // empty when Outcome is Aborted
	HadTextLayer bool
	Pages        []PageResult
	Outcome      Outcome
}

// FailedPages lists the indexes of pages that no renderer could produce.
func (r *Result) FailedPages() []int {
	var failed []int
	for _, page := range r.Pages {
		if page.Status == StatusFailed {
			failed = append(failed, page.Index)
		}
	}
	return failed
}

// Pipeline rasterizes a PDF and rebuilds it as an image-only document.
// All settings are carried in the value, so multiple pipelines with
// different settings can run concurrently.
type Pipeline struct {
	Config   config.Config
	Primary  pdfrenderer.Renderer // nil when preference is fallback_only
	Fallback pdfrenderer.Renderer // nil when unavailable or preference is primary_only
}

// New builds a pipeline from validated configuration. A missing fallback
// tool is fatal only when the preference demands it.
func New(cfg config.Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	p := &Pipeline{Config: cfg}

	if cfg.RendererPreference != config.FallbackOnly {
		primary, err := pdfrenderer.NewFitzRenderer()
		if err != nil {
			return nil, fmt.Errorf("unable to create primary renderer: %w", err)
		}
		p.Primary = primary
	}

	if cfg.RendererPreference != config.PrimaryOnly {
		fallback, err := pdfrenderer.NewCairoRenderer(cfg.PdftocairoPath)
		if err != nil {
			if cfg.RendererPreference == config.FallbackOnly {
				return nil, fmt.Errorf("fallback renderer required but unavailable: %w", err)
			}
			Logger.Warn("Fallback renderer unavailable, continuing with primary only", "error", err)
		} else {
			p.Fallback = fallback
		}
	}

	return p, nil
}

// Close releases renderer resources.
func (p *Pipeline) Close() error {
	if p.Primary != nil {
		if err := p.Primary.Close(); err != nil {
			return err
		}
	}
	if p.Fallback != nil {
		return p.Fallback.Close()
	}
	return nil
}

// Run strips the text layer from inPath by rasterizing every page and
// writing a visually identical, image-only PDF to outPath. The input is
// never modified and outPath never holds a partial file.
func (p *Pipeline) Run(ctx context.Context, inPath, outPath string) (*Result, error) {
	result := &Result{
		RunID:   ulid.Make(),
		Input:   inPath,
		Outcome: Aborted,
	}

	if samePath(inPath, outPath) {
		return result, fmt.Errorf("output path %s would overwrite the input", outPath)
	}

	src, err := OpenSource(inPath)
	if err != nil {
		return result, err
	}
	Logger.Info("Opened source document", "runID", result.RunID, "path", inPath, "pages", src.PageCount())

	if hadText, err := HasTextLayer(inPath); err != nil {
		Logger.Warn("Text layer probe failed", "path", inPath, "error", err)
	} else {
		result.HadTextLayer = hadText
		if !hadText {
			Logger.Info("Input carries no extractable text, output will be visually identical either way", "path", inPath)
		}
	}

	store := NewStore(src.PageCount())
	result.Pages = p.renderAll(ctx, src, store)

	if err := ctx.Err(); err != nil {
		// User abort: never publish a partial document.
		return result, err
	}

	failed := result.FailedPages()
	if len(failed) > 0 {
		if p.Config.OnPageFailure == config.FailureAbort {
			Logger.Error("Page rendering failed, aborting document", "runID", result.RunID, "failedPages", failed)
			return result, fmt.Errorf("page %d could not be rendered: %w", failed[0], firstPageError(result.Pages, failed[0]))
		}
		// Placeholder policy: stand in a blank page at the correct
		// geometry for every failed page and flag it in the result.
		for _, index := range failed {
			page := src.Pages[index]
			raster, err := p.placeholderRaster(page)
			if err != nil {
				return result, err
			}
			store.Append(raster)
			Logger.Warn("Inserted placeholder for failed page", "runID", result.RunID, "page", index)
		}
	}

	if err := BuildDocument(store.Drain(), outPath); err != nil {
		return result, err
	}

	result.Output = outPath
	if len(failed) > 0 {
		result.Outcome = PartialSuccess
	} else {
		result.Outcome = Done
	}
	Logger.Info("Document rebuilt without text layer", "runID", result.RunID, "output", outPath, "outcome", result.Outcome.String())
	return result, nil
}

// renderAll renders every source page into the store, up to
// RenderWorkers pages at a time. Completion order does not matter; the
// store re-sorts by page index on drain.
func (p *Pipeline) renderAll(ctx context.Context, src *Source, store *Store) []PageResult {
	results := make([]PageResult, src.PageCount())
	sem := make(chan struct{}, p.Config.RenderWorkers)
	var wg sync.WaitGroup

	for _, page := range src.Pages {
		if err := ctx.Err(); err != nil {
			results[page.Index] = PageResult{Index: page.Index, Status: StatusFailed, Err: err}
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(page PageInfo) {
			defer wg.Done()
			defer func() { <-sem }()
			results[page.Index] = p.renderPage(ctx, src, page, store)
		}(page)
	}
	wg.Wait()
	return results
}

// renderPage renders one page with the configured renderer chain and
// appends the encoded result to the store.
func (p *Pipeline) renderPage(ctx context.Context, src *Source, page PageInfo, store *Store) PageResult {
	pageCtx, cancel := context.WithTimeout(ctx, p.Config.PageTimeout)
	defer cancel()

	req := pdfrenderer.RenderRequest{
		PageIndex: page.Index,
		DPI:       p.Config.ResolutionDPI,
		ColorMode: pdfrenderer.ColorMode(p.Config.ColorMode),
	}

	status := StatusSuccess
	var raster *pdfrenderer.RasterImage
	var err error

	if p.Primary != nil {
		raster, err = p.Primary.RenderPage(pageCtx, src.Path, req)
		if err != nil {
			Logger.Warn("Primary renderer failed on page", "page", page.Index, "error", err)
		}
	} else {
		err = fmt.Errorf("primary renderer disabled")
	}

	if err != nil && p.Fallback != nil {
		raster, err = p.Fallback.RenderPage(pageCtx, src.Path, req)
		if err != nil {
			Logger.Warn("Fallback renderer failed on page", "page", page.Index, "error", err)
		} else {
			status = StatusFallbackUsed
		}
	}

	if err != nil {
		return PageResult{Index: page.Index, Status: StatusFailed, Err: err}
	}

	data, format, err := p.encodeImage(raster.Image)
	if err != nil {
		return PageResult{Index: page.Index, Status: StatusFailed, Err: fmt.Errorf("unable to encode page image: %w", err)}
	}

	store.Append(&PageRaster{
		PageIndex: page.Index,
		WidthPt:   page.Width,
		HeightPt:  page.Height,
		Data:      data,
		Format:    format,
	})
	return PageResult{Index: page.Index, Status: status}
}

// encodeImage compresses a rendered page per the configured format.
func (p *Pipeline) encodeImage(img image.Image) ([]byte, string, error) {
	var buf bytes.Buffer
	if p.Config.ImageFormat == "png" {
		if err := png.Encode(&buf, img); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "png", nil
	}
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: p.Config.JPEGQuality}); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), "jpeg", nil
}

// placeholderRaster synthesizes a blank page at the source page's
// geometry for a page no renderer could produce.
func (p *Pipeline) placeholderRaster(page PageInfo) (*PageRaster, error) {
	scale := float64(p.Config.ResolutionDPI) / 72.0
	widthPx := int(math.Ceil(page.Width * scale))
	heightPx := int(math.Ceil(page.Height * scale))
	blank := imaging.New(widthPx, heightPx, color.White)

	data, format, err := p.encodeImage(blank)
	if err != nil {
		return nil, &WriteError{Kind: EncodingFailure, Err: fmt.Errorf("unable to encode placeholder page: %w", err)}
	}
	return &PageRaster{
		PageIndex:   page.Index,
		WidthPt:     page.Width,
		HeightPt:    page.Height,
		Data:        data,
		Format:      format,
		Placeholder: true,
	}, nil
}

func firstPageError(pages []PageResult, index int) error {
	for _, page := range pages {
		if page.Index == index {
			return page.Err
		}
	}
	return nil
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}
