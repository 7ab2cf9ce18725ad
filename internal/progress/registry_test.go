package progress

import (
	"sync"
	"testing"
	"time"

	"github.com/spegrid/execreview-backend/internal/platform/logger"
)

func testRegistry(t *testing.T) *registry {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return &registry{
		log:       log,
		entries:   make(map[string]State),
		retention: time.Hour,
	}
}

func TestRegistrySetGetClear(t *testing.T) {
	r := testRegistry(t)

	if _, ok := r.Get("job-1"); ok {
		t.Fatalf("expected unknown job before first write")
	}

	r.Set("job-1", 15, "uploads persisted")
	st, ok := r.Get("job-1")
	if !ok {
		t.Fatalf("expected entry after Set")
	}
	if st.Percent != 15 || st.Status != "uploads persisted" {
		t.Fatalf("unexpected state: %+v", st)
	}

	r.Clear("job-1")
	if _, ok := r.Get("job-1"); ok {
		t.Fatalf("expected entry gone after Clear")
	}
}

func TestRegistryReusedJobIDOverwrites(t *testing.T) {
	r := testRegistry(t)

	r.Set("job-1", 100, "complete")
	r.Set("job-1", 5, "inputs validated")

	st, _ := r.Get("job-1")
	if st.Percent != 5 {
		t.Fatalf("expected resubmission to overwrite, got %d", st.Percent)
	}
}

func TestRegistrySweepRemovesStaleEntries(t *testing.T) {
	r := testRegistry(t)

	r.Set("stale", 40, "converting")
	r.Set("fresh", 75, "extracting")
	r.mu.Lock()
	st := r.entries["stale"]
	st.LastUpdate = time.Now().Add(-2 * time.Hour)
	r.entries["stale"] = st
	r.mu.Unlock()

	if removed := r.sweep(time.Now()); removed != 1 {
		t.Fatalf("expected one entry swept, got %d", removed)
	}
	if _, ok := r.Get("stale"); ok {
		t.Fatalf("stale entry should be gone")
	}
	if _, ok := r.Get("fresh"); !ok {
		t.Fatalf("fresh entry should survive")
	}
}

func TestRegistryConcurrentPollDuringWrites(t *testing.T) {
	r := testRegistry(t)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for pct := 0; pct <= 100; pct += 5 {
			r.Set("job-1", pct, "running")
		}
	}()

	last := -1
	for i := 0; i < 200; i++ {
		if st, ok := r.Get("job-1"); ok {
			if st.Percent < last {
				t.Errorf("percent went backwards: %d -> %d", last, st.Percent)
			}
			last = st.Percent
		}
	}
	wg.Wait()
}
