package storage

import (
	"sync"
)

// PageTable maps resident page IDs to the frames holding them.
// The table is split into shards, each guarded by its own lock.
type PageTable struct {
	shards    []*pageTableShard
	numShards uint32
}

type pageTableShard struct {
	mu     sync.RWMutex
	frames map[uint32]FrameID
}

// NewPageTable creates a page table with numShards shards (64 when zero)
func NewPageTable(numShards uint32) *PageTable {
	if numShards == 0 {
		numShards = 64
	}

	shards := make([]*pageTableShard, numShards)
	for i := uint32(0); i < numShards; i++ {
		shards[i] = &pageTableShard{
			frames: make(map[uint32]FrameID),
		}
	}

	return &PageTable{
		shards:    shards,
		numShards: numShards,
	}
}

func (pt *PageTable) getShard(pageId uint32) *pageTableShard {
	return pt.shards[pageId%pt.numShards]
}

// Get returns the frame holding pageId
func (pt *PageTable) Get(pageId uint32) (FrameID, bool) {
	shard := pt.getShard(pageId)
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	frameID, exists := shard.frames[pageId]
	return frameID, exists
}

// Put records that pageId lives in frameID
func (pt *PageTable) Put(pageId uint32, frameID FrameID) {
	shard := pt.getShard(pageId)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	shard.frames[pageId] = frameID
}

// Delete removes pageId from the table
func (pt *PageTable) Delete(pageId uint32) {
	shard := pt.getShard(pageId)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	delete(shard.frames, pageId)
}

// Size returns the number of resident pages across all shards
func (pt *PageTable) Size() int {
	total := 0
	for _, shard := range pt.shards {
		shard.mu.RLock()
		total += len(shard.frames)
		shard.mu.RUnlock()
	}
	return total
}

// ForEach calls fn for every entry while holding that entry's shard lock.
// Iteration stops when fn returns false.
func (pt *PageTable) ForEach(fn func(pageId uint32, frameID FrameID) bool) {
	for _, shard := range pt.shards {
		shard.mu.RLock()
		for pageId, frameID := range shard.frames {
			if !fn(pageId, frameID) {
				shard.mu.RUnlock()
				return
			}
		}
		shard.mu.RUnlock()
	}
}
