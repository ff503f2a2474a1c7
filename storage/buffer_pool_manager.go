package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// BufferPoolManager caches disk pages in a fixed set of frames and uses a
// Replacer to choose which unpinned frame to reuse when none is free.
//
// The replacer is not goroutine-safe; every call into it happens with
// latch held.
type BufferPoolManager struct {
	poolSize     uint32
	pages        []*Page   // indexed by FrameID, nil when the frame is free
	pageTable    *PageTable
	freeList     []FrameID
	diskManager  *DiskManager
	replacer     Replacer
	metrics      *Metrics
	logger       *slog.Logger
	flushWorkers int

	latch sync.Mutex
}

// NewBufferPoolManager creates a buffer pool using the default configuration
// for everything except the pool size
func NewBufferPoolManager(poolSize uint32, diskManager *DiskManager) (*BufferPoolManager, error) {
	config := DefaultConfig()
	config.BufferPoolSize = poolSize
	return NewBufferPoolManagerFromConfig(config, diskManager, nil)
}

// NewBufferPoolManagerFromConfig creates a buffer pool from config.
// A nil logger means slog.Default().
func NewBufferPoolManagerFromConfig(config *Config, diskManager *DiskManager, logger *slog.Logger) (*BufferPoolManager, error) {
	if config.BufferPoolSize == 0 {
		return nil, fmt.Errorf("pool size must be greater than 0")
	}
	if diskManager == nil {
		return nil, fmt.Errorf("disk manager is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	workers := config.FlushWorkers
	if workers <= 0 {
		workers = 1
	}

	metrics := NewMetrics()
	if !config.EnableMetrics {
		metrics = NewDisabledMetrics()
	}

	poolSize := config.BufferPoolSize
	bpm := &BufferPoolManager{
		poolSize:     poolSize,
		pages:        make([]*Page, poolSize),
		pageTable:    NewPageTable(64),
		freeList:     make([]FrameID, 0, poolSize),
		diskManager:  diskManager,
		replacer:     NewReplacer(config.ReplacerPolicy, poolSize, config.ReplacerK),
		metrics:      metrics,
		logger:       logger.With(slog.String("component", "buffer_pool")),
		flushWorkers: workers,
	}

	for i := uint32(0); i < poolSize; i++ {
		bpm.freeList = append(bpm.freeList, FrameID(i))
	}

	return bpm, nil
}

// GetPoolSize returns the pool size
func (bpm *BufferPoolManager) GetPoolSize() uint32 {
	return bpm.poolSize
}

// GetMetrics returns the buffer pool metrics
func (bpm *BufferPoolManager) GetMetrics() *Metrics {
	return bpm.metrics
}

// EvictableCount returns the number of frames the replacer may reclaim
func (bpm *BufferPoolManager) EvictableCount() uint32 {
	bpm.latch.Lock()
	defer bpm.latch.Unlock()
	return bpm.replacer.Size()
}

// FreeFrameCount returns the number of frames holding no page
func (bpm *BufferPoolManager) FreeFrameCount() int {
	bpm.latch.Lock()
	defer bpm.latch.Unlock()
	return len(bpm.freeList)
}

// NewPage allocates a page on disk and returns it pinned in the pool
func (bpm *BufferPoolManager) NewPage() (*Page, error) {
	bpm.latch.Lock()
	defer bpm.latch.Unlock()

	frameID, err := bpm.getFrameLocked("NewPage")
	if err != nil {
		return nil, err
	}

	pageId := bpm.diskManager.AllocatePage()
	page := NewPage(pageId)
	// A reused page ID may still hold old bytes on disk
	page.isDirty = true

	if err := bpm.installLocked(frameID, page); err != nil {
		bpm.diskManager.DeallocatePage(pageId)
		return nil, err
	}
	return page, nil
}

// FetchPage returns the requested page pinned, reading it from disk on a miss
func (bpm *BufferPoolManager) FetchPage(pageId uint32) (*Page, error) {
	start := time.Now()
	defer func() {
		bpm.metrics.RecordPageFetchLatency(time.Since(start))
	}()

	bpm.latch.Lock()
	defer bpm.latch.Unlock()

	if frameID, exists := bpm.pageTable.Get(pageId); exists {
		bpm.metrics.RecordCacheHit()
		page := bpm.pages[frameID]
		if err := bpm.pinLocked(frameID, page); err != nil {
			return nil, err
		}
		return page, nil
	}

	bpm.metrics.RecordCacheMiss()

	frameID, err := bpm.getFrameLocked("FetchPage")
	if err != nil {
		return nil, err
	}

	data, err := bpm.diskManager.ReadPage(pageId)
	if err != nil {
		bpm.freeList = append(bpm.freeList, frameID)
		return nil, fmt.Errorf("failed to read page from disk: %w", err)
	}

	page := NewPage(pageId)
	page.load(data)

	if err := bpm.installLocked(frameID, page); err != nil {
		return nil, err
	}
	return page, nil
}

// UnpinPage releases one pin on a page. When the last pin is released the
// frame becomes a candidate for eviction.
func (bpm *BufferPoolManager) UnpinPage(pageId uint32, isDirty bool) error {
	bpm.latch.Lock()
	defer bpm.latch.Unlock()

	frameID, exists := bpm.pageTable.Get(pageId)
	if !exists {
		return ErrPageNotFound("UnpinPage", pageId)
	}

	page := bpm.pages[frameID]
	if page.GetPinCount() == 0 {
		return ErrInvalidPin("UnpinPage", pageId)
	}

	if isDirty {
		page.SetDirty(true)
	}

	if page.unpin() == 0 {
		if err := bpm.replacer.SetEvictable(frameID, true); err != nil {
			bpm.metrics.RecordReplacerRejection()
			return fmt.Errorf("failed to unpin frame %d: %w", frameID, err)
		}
	}
	return nil
}

// DeletePage drops a page from the pool and releases its disk slot.
// Deleting a page that is not resident only releases the slot.
func (bpm *BufferPoolManager) DeletePage(pageId uint32) error {
	bpm.latch.Lock()
	defer bpm.latch.Unlock()

	frameID, exists := bpm.pageTable.Get(pageId)
	if !exists {
		bpm.diskManager.DeallocatePage(pageId)
		return nil
	}

	page := bpm.pages[frameID]
	if err := bpm.replacer.Remove(frameID); err != nil {
		if errors.Is(err, ErrFrameNotEvictable) {
			return ErrPagePinned("DeletePage", pageId, page.GetPinCount())
		}
		bpm.metrics.RecordReplacerRejection()
		return fmt.Errorf("failed to remove frame %d: %w", frameID, err)
	}

	bpm.pageTable.Delete(pageId)
	bpm.pages[frameID] = nil
	bpm.freeList = append(bpm.freeList, frameID)
	bpm.diskManager.DeallocatePage(pageId)
	bpm.metrics.RecordPageDelete()

	bpm.logger.Debug("deleted page",
		slog.Uint64("page_id", uint64(pageId)),
		slog.Uint64("frame_id", uint64(frameID)),
	)
	return nil
}

// FlushPage writes a resident page to disk, dirty or not
func (bpm *BufferPoolManager) FlushPage(pageId uint32) error {
	bpm.latch.Lock()
	defer bpm.latch.Unlock()

	frameID, exists := bpm.pageTable.Get(pageId)
	if !exists {
		return ErrPageNotFound("FlushPage", pageId)
	}
	return bpm.flushPage(bpm.pages[frameID])
}

// FlushAllPages writes every dirty page to disk. Dirty pages are split into
// at most FlushWorkers batches written concurrently, each with a single sync.
// The pool is blocked for the duration.
func (bpm *BufferPoolManager) FlushAllPages(ctx context.Context) error {
	bpm.latch.Lock()
	defer bpm.latch.Unlock()

	var dirty []*Page
	bpm.pageTable.ForEach(func(pageId uint32, frameID FrameID) bool {
		if page := bpm.pages[frameID]; page.IsDirty() {
			dirty = append(dirty, page)
		}
		return true
	})
	if len(dirty) == 0 {
		return nil
	}

	batchSize := (len(dirty) + bpm.flushWorkers - 1) / bpm.flushWorkers
	g, ctx := errgroup.WithContext(ctx)
	for batch := range slices.Chunk(dirty, batchSize) {
		g.Go(func() error {
			return bpm.flushBatch(ctx, batch)
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to flush pages: %w", err)
	}

	bpm.logger.Debug("flushed dirty pages", slog.Int("count", len(dirty)))
	return nil
}

// flushBatch writes pages with one WritePagesV call. Pages go back to dirty
// if the write fails.
func (bpm *BufferPoolManager) flushBatch(ctx context.Context, pages []*Page) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	writes := make([]PageWrite, len(pages))
	for i, page := range pages {
		writes[i] = PageWrite{PageID: page.GetPageId(), Data: page.snapshotAndClean()}
	}

	if err := bpm.diskManager.WritePagesV(writes); err != nil {
		for _, page := range pages {
			page.SetDirty(true)
		}
		return err
	}

	for range pages {
		bpm.metrics.RecordDirtyPageFlush()
	}
	return nil
}

// flushPage writes a page back to disk. The page stays dirty if the write fails.
func (bpm *BufferPoolManager) flushPage(page *Page) error {
	if err := bpm.diskManager.WritePage(page.GetPageId(), page.snapshotAndClean()); err != nil {
		page.SetDirty(true)
		return err
	}
	bpm.metrics.RecordDirtyPageFlush()
	return nil
}

// getFrameLocked returns a free frame, evicting a page if necessary
func (bpm *BufferPoolManager) getFrameLocked(op string) (FrameID, error) {
	if n := len(bpm.freeList); n > 0 {
		frameID := bpm.freeList[n-1]
		bpm.freeList = bpm.freeList[:n-1]
		return frameID, nil
	}

	frameID, ok := bpm.replacer.Evict()
	if !ok {
		bpm.metrics.RecordNoVictim()
		return 0, ErrNoFreePages(op)
	}

	victim := bpm.pages[frameID]
	if victim != nil {
		if victim.IsDirty() {
			if err := bpm.flushPage(victim); err != nil {
				bpm.restoreVictimLocked(frameID)
				return 0, fmt.Errorf("failed to flush dirty page: %w", err)
			}
		}
		bpm.pageTable.Delete(victim.GetPageId())
		bpm.pages[frameID] = nil
		bpm.metrics.RecordPageEviction()

		bpm.logger.Debug("evicted page",
			slog.Uint64("page_id", uint64(victim.GetPageId())),
			slog.Uint64("frame_id", uint64(frameID)),
		)
	}

	return frameID, nil
}

// restoreVictimLocked puts back a frame whose eviction could not complete.
// Its access history starts over.
func (bpm *BufferPoolManager) restoreVictimLocked(frameID FrameID) {
	if err := bpm.replacer.RecordAccess(frameID); err == nil {
		err = bpm.replacer.SetEvictable(frameID, true)
		if err == nil {
			return
		}
	}
	bpm.logger.Warn("could not return frame to replacer", slog.Uint64("frame_id", uint64(frameID)))
}

// installLocked places a pinned page into frameID
func (bpm *BufferPoolManager) installLocked(frameID FrameID, page *Page) error {
	bpm.pages[frameID] = page
	bpm.pageTable.Put(page.GetPageId(), frameID)

	if err := bpm.pinLocked(frameID, page); err != nil {
		bpm.pageTable.Delete(page.GetPageId())
		bpm.pages[frameID] = nil
		bpm.freeList = append(bpm.freeList, frameID)
		return err
	}
	return nil
}

// pinLocked records an access to frameID and keeps the replacer from
// choosing it until the page is unpinned
func (bpm *BufferPoolManager) pinLocked(frameID FrameID, page *Page) error {
	if err := bpm.replacer.RecordAccess(frameID); err != nil {
		bpm.metrics.RecordReplacerRejection()
		return fmt.Errorf("failed to record access to frame %d: %w", frameID, err)
	}
	if err := bpm.replacer.SetEvictable(frameID, false); err != nil {
		bpm.metrics.RecordReplacerRejection()
		return fmt.Errorf("failed to pin frame %d: %w", frameID, err)
	}
	page.pin()
	return nil
}
