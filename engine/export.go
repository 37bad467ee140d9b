package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/drummonds/godetext/config"
)

// ExportImages renders every page of inPath to an individual PNG file in
// a directory named after the input, under outDir. Page geometry and
// failure policy follow the same rules as Run; files are written only
// after every page has a terminal status, so a failed export leaves no
// directory of partial results behind.
func (p *Pipeline) ExportImages(ctx context.Context, inPath, outDir string) (*Result, error) {
	result := &Result{
		RunID:   ulid.Make(),
		Input:   inPath,
		Outcome: Aborted,
	}

	src, err := OpenSource(inPath)
	if err != nil {
		return result, err
	}
	Logger.Info("Exporting document pages to PNG", "runID", result.RunID, "path", inPath, "pages", src.PageCount())

	// Page images are strictly PNG regardless of the configured output
	// format for rebuilt documents.
	export := *p
	export.Config.ImageFormat = "png"

	store := NewStore(src.PageCount())
	result.Pages = export.renderAll(ctx, src, store)

	if err := ctx.Err(); err != nil {
		return result, err
	}

	failed := result.FailedPages()
	if len(failed) > 0 {
		if p.Config.OnPageFailure == config.FailureAbort {
			Logger.Error("Page rendering failed, aborting export", "runID", result.RunID, "failedPages", failed)
			return result, fmt.Errorf("page %d could not be rendered: %w", failed[0], firstPageError(result.Pages, failed[0]))
		}
		for _, index := range failed {
			raster, err := export.placeholderRaster(src.Pages[index])
			if err != nil {
				return result, err
			}
			store.Append(raster)
			Logger.Warn("Inserted placeholder for failed page", "runID", result.RunID, "page", index)
		}
	}

	baseName := strings.TrimSuffix(filepath.Base(inPath), filepath.Ext(inPath))
	folder := filepath.Join(outDir, baseName)
	if err := os.MkdirAll(folder, 0755); err != nil {
		return result, &WriteError{Kind: IOFailure, Err: err}
	}

	for _, page := range store.Drain() {
		name := filepath.Join(folder, fmt.Sprintf("page_%d.png", page.PageIndex+1))
		if err := os.WriteFile(name, page.Data, 0644); err != nil {
			return result, &WriteError{Kind: IOFailure, Err: err}
		}
	}

	result.Output = folder
	if len(failed) > 0 {
		result.Outcome = PartialSuccess
	} else {
		result.Outcome = Done
	}
	Logger.Info("Export complete", "runID", result.RunID, "folder", folder, "outcome", result.Outcome.String())
	return result, nil
}
