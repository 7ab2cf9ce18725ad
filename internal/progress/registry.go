package progress

import (
	"sync"
	"time"

	"github.com/spegrid/execreview-backend/internal/platform/logger"
)

// State is the externally observable progress of one in-flight job.
type State struct {
	Percent    int       `json:"percent"`
	Status     string    `json:"status"`
	LastUpdate time.Time `json:"-"`
}

// Registry tracks job progress in volatile memory. One writer per job id (the
// pipeline), any number of concurrent pollers. A resubmission that reuses a job
// id silently overwrites the previous state; that is a caller contract, not
// something the registry defends against.
type Registry interface {
	Set(jobID string, percent int, status string)
	Get(jobID string) (State, bool)
	Clear(jobID string)
}

const (
	defaultRetention     = time.Hour
	defaultSweepInterval = time.Hour
)

type registry struct {
	log       *logger.Logger
	mu        sync.RWMutex
	entries   map[string]State
	retention time.Duration
}

// New returns a registry that sweeps entries untouched for one hour.
func New(baseLog *logger.Logger) Registry {
	return NewWithRetention(baseLog, defaultRetention, defaultSweepInterval)
}

func NewWithRetention(baseLog *logger.Logger, retention, sweepEvery time.Duration) Registry {
	if retention <= 0 {
		retention = defaultRetention
	}
	if sweepEvery <= 0 {
		sweepEvery = defaultSweepInterval
	}
	r := &registry{
		log:       baseLog.With("service", "ProgressRegistry"),
		entries:   make(map[string]State),
		retention: retention,
	}
	go r.sweepLoop(sweepEvery)
	return r
}

func (r *registry) Set(jobID string, percent int, status string) {
	r.mu.Lock()
	r.entries[jobID] = State{Percent: percent, Status: status, LastUpdate: time.Now()}
	r.mu.Unlock()
}

func (r *registry) Get(jobID string) (State, bool) {
	r.mu.RLock()
	st, ok := r.entries[jobID]
	r.mu.RUnlock()
	return st, ok
}

func (r *registry) Clear(jobID string) {
	r.mu.Lock()
	delete(r.entries, jobID)
	r.mu.Unlock()
}

func (r *registry) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for range ticker.C {
		removed := r.sweep(time.Now())
		if removed > 0 {
			r.log.Debug("Swept stale job progress entries", "removed", removed)
		}
	}
}

func (r *registry) sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, st := range r.entries {
		if now.Sub(st.LastUpdate) > r.retention {
			delete(r.entries, id)
			removed++
		}
	}
	return removed
}
