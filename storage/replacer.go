package storage

// Replacer is the frame replacement policy used by the buffer pool.
// Implementations are not safe for concurrent use; the pool serializes calls.
type Replacer interface {
	// RecordAccess notes an access to a frame, starting to track it if needed
	RecordAccess(frameID FrameID) error

	// SetEvictable pins (false) or unpins (true) a tracked frame
	SetEvictable(frameID FrameID, evictable bool) error

	// Remove stops tracking an evictable frame outside of victim selection
	Remove(frameID FrameID) error

	// Evict selects a victim, stops tracking it and returns its id.
	// Returns false if no frame is evictable.
	Evict() (FrameID, bool)

	// Size returns the number of evictable frames
	Size() uint32
}

const (
	// PolicyLRUK selects the LRU-K replacer
	PolicyLRUK = "lru-k"

	// PolicyLRU selects LRU-K with a window of one access
	PolicyLRU = "lru"

	// DefaultReplacerK is the history window used when none is configured
	DefaultReplacerK = 2
)

// NewReplacer creates a replacer for the named policy.
// Unknown policies fall back to LRU-K.
func NewReplacer(policy string, capacity uint32, k uint32) Replacer {
	if k == 0 {
		k = DefaultReplacerK
	}
	switch policy {
	case PolicyLRU:
		// LRU-1 orders frames by their last access, which is plain LRU
		return NewLRUKReplacer(capacity, 1)
	case PolicyLRUK:
		return NewLRUKReplacer(capacity, k)
	default:
		return NewLRUKReplacer(capacity, k)
	}
}

var _ Replacer = (*LRUKReplacer)(nil)
