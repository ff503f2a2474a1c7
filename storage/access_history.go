package storage

// accessHistory keeps the last k logical timestamps of a single frame.
// Timestamps live in a fixed ring: head points at the oldest entry.
type accessHistory struct {
	timestamps []uint64
	head       int
	count      int
}

func newAccessHistory(k uint32) *accessHistory {
	return &accessHistory{
		timestamps: make([]uint64, k),
	}
}

// record appends ts, dropping the oldest timestamp once k are held
func (h *accessHistory) record(ts uint64) {
	k := len(h.timestamps)
	if h.count == k {
		h.timestamps[h.head] = ts
		h.head = (h.head + 1) % k
		return
	}
	h.timestamps[(h.head+h.count)%k] = ts
	h.count++
}

func (h *accessHistory) len() int {
	return h.count
}

// mostRecent returns the newest timestamp
func (h *accessHistory) mostRecent() (uint64, bool) {
	if h.count == 0 {
		return 0, false
	}
	return h.timestamps[(h.head+h.count-1)%len(h.timestamps)], true
}

// kthMostRecent returns the k-th most recent timestamp.
// It is only defined once the history holds exactly k entries.
func (h *accessHistory) kthMostRecent() (uint64, bool) {
	if h.count < len(h.timestamps) {
		return 0, false
	}
	return h.timestamps[h.head], true
}
