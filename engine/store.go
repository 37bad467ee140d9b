package engine

import (
	"sort"
	"sync"
)

// PageRaster pairs one rendered page with its output geometry. Data
// holds the encoded (JPEG or PNG) image rather than raw pixels so a
// large document does not pin uncompressed buffers.
type PageRaster struct {
	PageIndex   int
	WidthPt     float64 // output page width in points, from the source page
	HeightPt    float64 // output page height in points, from the source page
	Data        []byte
	Format      string // "jpeg" or "png"
	Placeholder bool
}

// Store is an append-only collection of rendered pages. Appends may
// arrive in any order (rendering can be parallel); Drain always yields
// pages in ascending page index order.
type Store struct {
	mu    sync.Mutex
	pages []*PageRaster
}

// NewStore creates an empty store sized for the given page count.
func NewStore(pageCount int) *Store {
	return &Store{pages: make([]*PageRaster, 0, pageCount)}
}

// Append adds one rendered page.
func (s *Store) Append(page *PageRaster) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages = append(s.pages, page)
}

// Len returns the number of pages appended so far.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pages)
}

// Drain returns all pages sorted by page index and releases the store's
// references to them.
func (s *Store) Drain() []*PageRaster {
	s.mu.Lock()
	defer s.mu.Unlock()
	pages := s.pages
	s.pages = nil
	sort.Slice(pages, func(i, j int) bool {
		return pages[i].PageIndex < pages[j].PageIndex
	})
	return pages
}
