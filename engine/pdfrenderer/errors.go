package pdfrenderer

import "fmt"

// ErrorKind classifies page-level render failures so the pipeline can
// decide between fallback, placeholder and abort.
type ErrorKind int

const (
	// Unsupported means the renderer could not handle this page's content.
	Unsupported ErrorKind = iota
	// Corrupt means the document or page could not be opened or parsed.
	Corrupt
	// Timeout means the render exceeded its per-page deadline.
	Timeout
	// ToolUnavailable means the external rendering tool is not installed.
	ToolUnavailable
	// ToolFailed means the external rendering tool ran and reported failure.
	ToolFailed
)

func (k ErrorKind) String() string {
	switch k {
	case Unsupported:
		return "unsupported"
	case Corrupt:
		return "corrupt"
	case Timeout:
		return "timeout"
	case ToolUnavailable:
		return "tool unavailable"
	case ToolFailed:
		return "tool failed"
	}
	return "unknown"
}

// RenderError is a page-local failure. It never aborts the document by
// itself; the pipeline resolves it by fallback or policy.
type RenderError struct {
	Kind ErrorKind
	Page int
	Err  error
}

func (e *RenderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("render page %d: %s", e.Page, e.Kind)
	}
	return fmt.Sprintf("render page %d: %s: %v", e.Page, e.Kind, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}
