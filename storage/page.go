package storage

import (
	"sync"
)

// PageSize is the size of a page in memory and of a page slot on disk
const PageSize = 4096

// Page represents a page in memory with metadata
type Page struct {
	pageId   uint32
	pinCount int32
	isDirty  bool
	data     [PageSize]byte
	mutex    sync.RWMutex
}

// NewPage creates a new, zeroed page with the given page ID
func NewPage(pageId uint32) *Page {
	return &Page{
		pageId: pageId,
	}
}

// GetPageId returns the page ID
func (p *Page) GetPageId() uint32 {
	return p.pageId
}

// GetPinCount returns the pin count
func (p *Page) GetPinCount() int32 {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return p.pinCount
}

// IsDirty returns whether the page is dirty
func (p *Page) IsDirty() bool {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return p.isDirty
}

// SetDirty sets the dirty flag
func (p *Page) SetDirty(dirty bool) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.isDirty = dirty
}

// pin increments the pin count and returns the new value
func (p *Page) pin() int32 {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.pinCount++
	return p.pinCount
}

// unpin decrements the pin count and returns the new value
func (p *Page) unpin() int32 {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.pinCount > 0 {
		p.pinCount--
	}
	return p.pinCount
}

// Read copies page contents starting at offset into buf
func (p *Page) Read(offset int, buf []byte) int {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	if offset < 0 || offset >= PageSize {
		return 0
	}
	return copy(buf, p.data[offset:])
}

// Write copies buf into the page at offset and marks the page dirty
func (p *Page) Write(offset int, buf []byte) int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if offset < 0 || offset >= PageSize {
		return 0
	}
	n := copy(p.data[offset:], buf)
	p.isDirty = true
	return n
}

// snapshotAndClean returns a copy of the page contents for writing to disk
// and clears the dirty flag in the same critical section. A Write that
// follows the copy marks the page dirty again.
func (p *Page) snapshotAndClean() []byte {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	out := make([]byte, PageSize)
	copy(out, p.data[:])
	p.isDirty = false
	return out
}

// load replaces the page contents with data read from disk
func (p *Page) load(data []byte) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	copy(p.data[:], data)
}
