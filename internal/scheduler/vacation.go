package scheduler

import (
	"sync"

	"github.com/NDK-Games/AITaskBot/internal/domain"
)

// VacationRegistry keeps, per user, the last user-local day (inclusive) on
// which reminders are suppressed. Entries are never expired; a past date is
// simply inert.
type VacationRegistry struct {
	mu    sync.RWMutex
	until map[int64]domain.Date
}

func NewVacationRegistry() *VacationRegistry {
	return &VacationRegistry{until: make(map[int64]domain.Date)}
}

// SetVacationUntil replaces any previous entry for the user.
func (v *VacationRegistry) SetVacationUntil(userID int64, untilInclusive domain.Date) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.until[userID] = untilInclusive
}

func (v *VacationRegistry) TryGetVacationUntil(userID int64) (domain.Date, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	d, ok := v.until[userID]
	return d, ok
}

// IsOnVacation reports whether todayLocal <= the stored date.
func (v *VacationRegistry) IsOnVacation(userID int64, todayLocal domain.Date) bool {
	until, ok := v.TryGetVacationUntil(userID)
	return ok && !todayLocal.After(until)
}
