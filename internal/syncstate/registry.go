package syncstate

import (
	"log/slog"
	"sync"
)

// Registry owns one Tracker per timeline id. Trackers are created lazily on
// first access and dropped when their timeline is deleted. Backed by an
// RWMutex-guarded map; reads (state polls) vastly outnumber writes.
type Registry struct {
	mu       sync.RWMutex
	trackers map[string]*Tracker
	log      *slog.Logger
}

// NewRegistry creates an empty tracker registry.
func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		trackers: make(map[string]*Tracker),
		log:      log,
	}
}

// Get returns the tracker for a timeline, or nil if none exists.
func (r *Registry) Get(timelineID string) *Tracker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.trackers[timelineID]
}

// GetOrCreate returns the tracker for a timeline, creating it in the Synced
// state on first access.
func (r *Registry) GetOrCreate(timelineID string) *Tracker {
	r.mu.RLock()
	t, ok := r.trackers[timelineID]
	r.mu.RUnlock()
	if ok {
		return t
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another goroutine may have created it between the two locks.
	if t, ok := r.trackers[timelineID]; ok {
		return t
	}
	t = NewTracker(timelineID, r.log)
	r.trackers[timelineID] = t
	return t
}

// Remove drops the tracker for a deleted timeline.
func (r *Registry) Remove(timelineID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.trackers, timelineID)
}

// Len returns the number of tracked timelines.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.trackers)
}
