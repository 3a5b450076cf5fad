package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTeamLocksAreExclusivePerTeam(t *testing.T) {
	locks := newTeamLocks()

	assert.True(t, locks.TryAcquire("team-a"))
	assert.False(t, locks.TryAcquire("team-a"))

	// Other teams run independently.
	assert.True(t, locks.TryAcquire("team-b"))

	locks.Release("team-a")
	assert.True(t, locks.TryAcquire("team-a"))
}
