package engine

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/drummonds/godetext/config"
	"github.com/drummonds/godetext/engine/pdfrenderer"
)

func TestRunRebuildsAllPages(t *testing.T) {
	inPath := tempPDFPath(t, "in.pdf")
	sizes := []pageSize{sizeA4, sizeLetter, sizeA4Landscape}
	makeTestPDF(t, inPath, sizes)
	outPath := tempPDFPath(t, "out.pdf")

	p := &Pipeline{Config: testConfig(), Primary: &stubRenderer{}}

	result, err := p.Run(context.Background(), inPath, outPath)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Outcome != Done {
		t.Fatalf("expected Done, got %v", result.Outcome)
	}
	if result.Output != outPath {
		t.Errorf("result output %q, want %q", result.Output, outPath)
	}
	for _, page := range result.Pages {
		if page.Status != StatusSuccess {
			t.Errorf("page %d status %v, want success", page.Index, page.Status)
		}
	}

	count, err := api.PageCountFile(outPath)
	if err != nil {
		t.Fatalf("output unreadable: %v", err)
	}
	if count != len(sizes) {
		t.Errorf("output has %d pages, want %d", count, len(sizes))
	}

	src, err := OpenSource(outPath)
	if err != nil {
		t.Fatalf("OpenSource on output failed: %v", err)
	}
	for i, size := range sizes {
		page := src.Pages[i]
		if diff := page.Width - size.width; diff > 1 || diff < -1 {
			t.Errorf("output page %d width %.2f, want %.2f within 1pt", i, page.Width, size.width)
		}
	}

	hadText, err := HasTextLayer(outPath)
	if err != nil {
		t.Fatalf("text probe failed: %v", err)
	}
	if hadText {
		t.Error("output still carries extractable text")
	}
}

func TestRunFallsBackOnPageFailure(t *testing.T) {
	inPath := tempPDFPath(t, "in.pdf")
	makeTestPDF(t, inPath, []pageSize{sizeA4, sizeLetter, sizeA4})
	outPath := tempPDFPath(t, "out.pdf")

	primary := &stubRenderer{fail: map[int]error{1: renderErr(pdfrenderer.Corrupt, 1)}}
	fallback := &stubRenderer{}
	p := &Pipeline{Config: testConfig(), Primary: primary, Fallback: fallback}

	result, err := p.Run(context.Background(), inPath, outPath)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Outcome != Done {
		t.Fatalf("expected Done, got %v", result.Outcome)
	}

	wantStatus := []PageStatus{StatusSuccess, StatusFallbackUsed, StatusSuccess}
	for i, page := range result.Pages {
		if page.Status != wantStatus[i] {
			t.Errorf("page %d status %v, want %v", i, page.Status, wantStatus[i])
		}
	}
	if fallback.callCount() != 1 {
		t.Errorf("fallback called %d times, want 1", fallback.callCount())
	}

	count, err := api.PageCountFile(outPath)
	if err != nil {
		t.Fatalf("output unreadable: %v", err)
	}
	if count != 3 {
		t.Errorf("output has %d pages, want 3", count)
	}
}

func TestRunAbortPolicyWritesNothing(t *testing.T) {
	inPath := tempPDFPath(t, "in.pdf")
	makeTestPDF(t, inPath, []pageSize{sizeA4, sizeLetter, sizeA4})
	outPath := tempPDFPath(t, "out.pdf")

	failing := map[int]error{1: renderErr(pdfrenderer.Unsupported, 1)}
	p := &Pipeline{
		Config:   testConfig(),
		Primary:  &stubRenderer{fail: failing},
		Fallback: &stubRenderer{fail: failing},
	}

	result, err := p.Run(context.Background(), inPath, outPath)
	if err == nil {
		t.Fatal("expected error for failed page under abort policy")
	}
	if result.Outcome != Aborted {
		t.Fatalf("expected Aborted, got %v", result.Outcome)
	}
	if got := result.FailedPages(); len(got) != 1 || got[0] != 1 {
		t.Errorf("failed pages %v, want [1]", got)
	}
	if _, statErr := os.Stat(outPath); !os.IsNotExist(statErr) {
		t.Error("output file exists despite abort")
	}
	if _, statErr := os.Stat(outPath + ".tmp"); !os.IsNotExist(statErr) {
		t.Error("temporary file left behind after abort")
	}
}

func TestRunPlaceholderPolicyFlagsFailedPage(t *testing.T) {
	inPath := tempPDFPath(t, "in.pdf")
	sizes := []pageSize{sizeA4, sizeLetter, sizeA4}
	makeTestPDF(t, inPath, sizes)
	outPath := tempPDFPath(t, "out.pdf")

	cfg := testConfig()
	cfg.OnPageFailure = config.FailurePlaceholder
	failing := map[int]error{1: renderErr(pdfrenderer.Unsupported, 1)}
	p := &Pipeline{
		Config:   cfg,
		Primary:  &stubRenderer{fail: failing},
		Fallback: &stubRenderer{fail: failing},
	}

	result, err := p.Run(context.Background(), inPath, outPath)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Outcome != PartialSuccess {
		t.Fatalf("expected PartialSuccess, got %v", result.Outcome)
	}
	if got := result.FailedPages(); len(got) != 1 || got[0] != 1 {
		t.Errorf("failed pages %v, want [1]", got)
	}

	count, err := api.PageCountFile(outPath)
	if err != nil {
		t.Fatalf("output unreadable: %v", err)
	}
	if count != len(sizes) {
		t.Errorf("output has %d pages, want %d", count, len(sizes))
	}

	// The placeholder keeps the failed page's geometry.
	src, err := OpenSource(outPath)
	if err != nil {
		t.Fatalf("OpenSource on output failed: %v", err)
	}
	if diff := src.Pages[1].Width - sizeLetter.width; diff > 1 || diff < -1 {
		t.Errorf("placeholder width %.2f, want %.2f within 1pt", src.Pages[1].Width, sizeLetter.width)
	}
}

func TestRunFallbackOnly(t *testing.T) {
	inPath := tempPDFPath(t, "in.pdf")
	makeTestPDF(t, inPath, []pageSize{sizeA4, sizeLetter})
	outPath := tempPDFPath(t, "out.pdf")

	cfg := testConfig()
	cfg.RendererPreference = config.FallbackOnly
	fallback := &stubRenderer{}
	p := &Pipeline{Config: cfg, Fallback: fallback}

	result, err := p.Run(context.Background(), inPath, outPath)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Outcome != Done {
		t.Fatalf("expected Done, got %v", result.Outcome)
	}
	for _, page := range result.Pages {
		if page.Status != StatusFallbackUsed {
			t.Errorf("page %d status %v, want fallback", page.Index, page.Status)
		}
	}
	if fallback.callCount() != 2 {
		t.Errorf("fallback called %d times, want 2", fallback.callCount())
	}
}

func TestRunParallelPreservesPageOrder(t *testing.T) {
	inPath := tempPDFPath(t, "in.pdf")
	// Distinct sizes per page so order is observable in the output.
	sizes := []pageSize{
		{400, 500}, {410, 510}, {420, 520}, {430, 530},
		{440, 540}, {450, 550}, {460, 560}, {470, 570},
	}
	makeTestPDF(t, inPath, sizes)
	outPath := tempPDFPath(t, "out.pdf")

	cfg := testConfig()
	cfg.RenderWorkers = 4
	p := &Pipeline{Config: cfg, Primary: &stubRenderer{delay: 5 * time.Millisecond}}

	result, err := p.Run(context.Background(), inPath, outPath)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Outcome != Done {
		t.Fatalf("expected Done, got %v", result.Outcome)
	}

	src, err := OpenSource(outPath)
	if err != nil {
		t.Fatalf("OpenSource on output failed: %v", err)
	}
	if src.PageCount() != len(sizes) {
		t.Fatalf("output has %d pages, want %d", src.PageCount(), len(sizes))
	}
	for i, size := range sizes {
		if diff := src.Pages[i].Width - size.width; diff > 1 || diff < -1 {
			t.Errorf("page %d out of order: width %.2f, want %.2f", i, src.Pages[i].Width, size.width)
		}
	}
}

func TestRunRejectsOverwritingInput(t *testing.T) {
	inPath := tempPDFPath(t, "in.pdf")
	makeTestPDF(t, inPath, []pageSize{sizeA4})

	p := &Pipeline{Config: testConfig(), Primary: &stubRenderer{}}
	result, err := p.Run(context.Background(), inPath, inPath)
	if err == nil {
		t.Fatal("expected error when output would overwrite input")
	}
	if result.Outcome != Aborted {
		t.Errorf("expected Aborted, got %v", result.Outcome)
	}
}

func TestRunCancelledWritesNothing(t *testing.T) {
	inPath := tempPDFPath(t, "in.pdf")
	makeTestPDF(t, inPath, []pageSize{sizeA4, sizeLetter})
	outPath := tempPDFPath(t, "out.pdf")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &Pipeline{Config: testConfig(), Primary: &stubRenderer{}}
	result, err := p.Run(ctx, inPath, outPath)
	if err == nil {
		t.Fatal("expected error for cancelled run")
	}
	if result.Outcome != Aborted {
		t.Fatalf("expected Aborted, got %v", result.Outcome)
	}
	if _, statErr := os.Stat(outPath); !os.IsNotExist(statErr) {
		t.Error("output file exists despite cancellation")
	}
}

func TestRunReportsTextLayer(t *testing.T) {
	inPath := tempPDFPath(t, "in.pdf")
	makeTextPDF(t, inPath)
	outPath := tempPDFPath(t, "out.pdf")

	p := &Pipeline{Config: testConfig(), Primary: &stubRenderer{}}
	result, err := p.Run(context.Background(), inPath, outPath)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !result.HadTextLayer {
		t.Error("input text layer not reported")
	}

	hadText, err := HasTextLayer(outPath)
	if err != nil {
		t.Fatalf("text probe on output failed: %v", err)
	}
	if hadText {
		t.Error("output still carries extractable text")
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.ResolutionDPI = 0
	if _, err := New(cfg); err == nil {
		t.Error("expected error for invalid configuration")
	}
}
