package workspace

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// Reaper deletes session directories that have been idle longer than the
// timeout. Only uuid-named directories under the root are considered.
type Reaper struct {
	root    string
	timeout time.Duration
	now     func() time.Time

	mu     sync.Mutex
	cron   *cron.Cron
	cronID cron.EntryID
}

func NewReaper(root string, timeout time.Duration) *Reaper {
	return &Reaper{
		root:    root,
		timeout: timeout,
		now:     time.Now,
		cron:    cron.New(),
	}
}

// Sweep removes every stale session and returns how many were deleted.
func (r *Reaper) Sweep() (int, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read cache root: %w", err)
	}

	cutoff := r.now().Add(-r.timeout)
	removed := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := uuid.Parse(e.Name()); err != nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		dir := filepath.Join(r.root, e.Name())
		if err := os.RemoveAll(dir); err != nil {
			log.Printf("[Reaper] Failed to remove %s: %v", dir, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		log.Printf("[Reaper] Removed %d stale session(s) idle > %s", removed, r.timeout)
	}
	return removed, nil
}

// Start runs Sweep on the given cron schedule until Stop is called.
func (r *Reaper) Start(schedule string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, err := r.cron.AddFunc(schedule, func() {
		if _, err := r.Sweep(); err != nil {
			log.Printf("[Reaper] Sweep error: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add reaper schedule: %w", err)
	}

	r.cronID = id
	r.cron.Start()
	log.Printf("[Reaper] Started with schedule %q, timeout %s", schedule, r.timeout)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (r *Reaper) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	<-r.cron.Stop().Done()
}
