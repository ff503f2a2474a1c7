package storage

// FrameID identifies a buffer pool frame
type FrameID uint32

// lrukNode is the replacer's bookkeeping for one tracked frame
type lrukNode struct {
	history   *accessHistory
	evictable bool
}

// LRUKReplacer implements the LRU-K replacement policy.
//
// A frame's backward K-distance is the age of its K-th most recent access.
// Frames with fewer than K recorded accesses have an infinite distance and are
// evicted before any frame that has reached K accesses. Ties are broken by the
// oldest most recent access, then by the smaller frame id.
//
// LRUKReplacer does no locking of its own. Callers sharing one between
// goroutines must serialize every call, as BufferPoolManager does with its
// pool latch.
type LRUKReplacer struct {
	capacity       uint32
	k              uint32
	nodes          map[FrameID]*lrukNode
	evictableCount uint32
	// Logical clock, advanced once per RecordAccess. Wraps to 0 on overflow.
	currentTimestamp uint64
}

// NewLRUKReplacer creates a replacer that tracks at most capacity frames.
// It panics if capacity or k is zero.
func NewLRUKReplacer(capacity uint32, k uint32) *LRUKReplacer {
	if capacity == 0 {
		panic("lruk replacer: capacity must be >= 1")
	}
	if k == 0 {
		panic("lruk replacer: k must be >= 1")
	}
	return &LRUKReplacer{
		capacity: capacity,
		k:        k,
		nodes:    make(map[FrameID]*lrukNode, capacity),
	}
}

// RecordAccess records an access to frameID at the next logical timestamp.
// A frame seen for the first time starts out non-evictable. It returns an
// ErrCodeReplacerFull error, leaving the replacer untouched, if tracking the
// frame would exceed capacity.
func (r *LRUKReplacer) RecordAccess(frameID FrameID) error {
	node, exists := r.nodes[frameID]
	if !exists && uint32(len(r.nodes)) >= r.capacity {
		return errReplacerFull("RecordAccess", frameID, r.capacity)
	}

	r.currentTimestamp++

	if !exists {
		node = &lrukNode{history: newAccessHistory(r.k)}
		r.nodes[frameID] = node
	}
	node.history.record(r.currentTimestamp)
	return nil
}

// SetEvictable marks a tracked frame as evictable (unpinned) or not (pinned)
func (r *LRUKReplacer) SetEvictable(frameID FrameID, evictable bool) error {
	node, exists := r.nodes[frameID]
	if !exists {
		return errFrameNotFound("SetEvictable", frameID)
	}

	switch {
	case !node.evictable && evictable:
		r.evictableCount++
	case node.evictable && !evictable:
		r.evictableCount--
	}
	node.evictable = evictable
	return nil
}

// Remove drops a frame and its access history.
// Removing an untracked frame is a no-op. Removing a pinned frame fails with
// ErrCodeFrameNotEvictable.
func (r *LRUKReplacer) Remove(frameID FrameID) error {
	node, exists := r.nodes[frameID]
	if !exists {
		return nil
	}
	if !node.evictable {
		return errFrameNotEvictable("Remove", frameID)
	}

	delete(r.nodes, frameID)
	r.evictableCount--
	return nil
}

// Evict chooses a victim among the evictable frames, stops tracking it and
// returns its id. It returns false when nothing is evictable.
func (r *LRUKReplacer) Evict() (FrameID, bool) {
	if r.evictableCount == 0 {
		return 0, false
	}

	var (
		best  evictionKey
		found bool
	)
	for frameID, node := range r.nodes {
		if !node.evictable {
			continue
		}
		key := r.evictionKeyFor(frameID, node)
		if !found || key.before(best) {
			best = key
			found = true
		}
	}
	if !found {
		return 0, false
	}

	delete(r.nodes, best.frameID)
	r.evictableCount--
	return best.frameID, true
}

// Size returns the number of evictable frames
func (r *LRUKReplacer) Size() uint32 {
	return r.evictableCount
}

// Capacity returns the maximum number of tracked frames
func (r *LRUKReplacer) Capacity() uint32 {
	return r.capacity
}

// K returns the history window size
func (r *LRUKReplacer) K() uint32 {
	return r.k
}

// TrackedCount returns the number of tracked frames, pinned or not
func (r *LRUKReplacer) TrackedCount() uint32 {
	return uint32(len(r.nodes))
}

// IsTracked reports whether frameID has an access history
func (r *LRUKReplacer) IsTracked(frameID FrameID) bool {
	_, exists := r.nodes[frameID]
	return exists
}

// IsEvictable reports the evictable flag of frameID and whether it is tracked
func (r *LRUKReplacer) IsEvictable(frameID FrameID) (evictable bool, tracked bool) {
	node, exists := r.nodes[frameID]
	if !exists {
		return false, false
	}
	return node.evictable, true
}

// countEvictable scans every node. Size must always agree with it.
func (r *LRUKReplacer) countEvictable() uint32 {
	var count uint32
	for _, node := range r.nodes {
		if node.evictable {
			count++
		}
	}
	return count
}

// evictionKey orders eviction candidates.
// Ages are measured modulo 2^64 from the current timestamp, so ordering stays
// correct across a single clock wrap.
type evictionKey struct {
	infinite  bool   // fewer than k recorded accesses
	kDistance uint64 // age of the k-th most recent access, when !infinite
	age       uint64 // age of the most recent access
	frameID   FrameID
}

func (r *LRUKReplacer) evictionKeyFor(frameID FrameID, node *lrukNode) evictionKey {
	key := evictionKey{frameID: frameID}

	if kth, ok := node.history.kthMostRecent(); ok {
		key.kDistance = r.currentTimestamp - kth
	} else {
		key.infinite = true
	}
	if last, ok := node.history.mostRecent(); ok {
		key.age = r.currentTimestamp - last
	}
	return key
}

// before reports whether a should be evicted ahead of b
func (a evictionKey) before(b evictionKey) bool {
	if a.infinite != b.infinite {
		return a.infinite
	}
	if !a.infinite && a.kDistance != b.kDistance {
		return a.kDistance > b.kDistance
	}
	// Older most recent access goes first.
	if a.age != b.age {
		return a.age > b.age
	}
	return a.frameID < b.frameID
}
