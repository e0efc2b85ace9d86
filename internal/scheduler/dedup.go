package scheduler

import (
	"sync"

	"github.com/NDK-Games/AITaskBot/internal/domain"
)

// DedupTracker remembers the user-local date of the last dispatched reminder.
type DedupTracker struct {
	mu   sync.RWMutex
	last map[int64]domain.Date
}

func NewDedupTracker() *DedupTracker {
	return &DedupTracker{last: make(map[int64]domain.Date)}
}

func (d *DedupTracker) MarkNotified(userID int64, date domain.Date) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.last[userID] = date
}

func (d *DedupTracker) WasNotifiedOn(userID int64, date domain.Date) bool {
	last, ok := d.LastNotified(userID)
	return ok && last == date
}

func (d *DedupTracker) LastNotified(userID int64) (domain.Date, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	last, ok := d.last[userID]
	return last, ok
}

// Clear drops the record so a stale date cannot block a later reminder.
func (d *DedupTracker) Clear(userID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.last, userID)
}
