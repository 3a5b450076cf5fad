package sync

import "sync"

// teamLocks enforces "at most one run per team". It is an admission check,
// not a queue: a trigger arriving while the team is running is rejected.
type teamLocks struct {
	mu      sync.Mutex
	running map[string]bool
}

func newTeamLocks() *teamLocks {
	return &teamLocks{running: make(map[string]bool)}
}

// TryAcquire takes the team's lock. Returns false when a run already holds it.
func (l *teamLocks) TryAcquire(teamID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running[teamID] {
		return false
	}
	l.running[teamID] = true
	return true
}

// Release frees the team's lock.
func (l *teamLocks) Release(teamID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.running, teamID)
}
