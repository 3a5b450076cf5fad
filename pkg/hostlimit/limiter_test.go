package hostlimit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireUpToCap(t *testing.T) {
	l := New(2)

	assert.True(t, l.Acquire("manifests.example.com"))
	assert.True(t, l.Acquire("manifests.example.com"))
	assert.False(t, l.Acquire("manifests.example.com"))

	// A different host has its own budget.
	assert.True(t, l.Acquire("other.example.com"))
}

func TestReleaseFreesSlot(t *testing.T) {
	l := New(1)

	require.True(t, l.Acquire("manifests.example.com"))
	require.False(t, l.Acquire("manifests.example.com"))

	l.Release("manifests.example.com")
	assert.True(t, l.Acquire("manifests.example.com"))
	assert.Equal(t, 1, l.InFlight("manifests.example.com"))
}

func TestZeroMaxUsesDefault(t *testing.T) {
	l := New(0)
	for i := 0; i < DefaultMaxPerHost; i++ {
		assert.True(t, l.Acquire("h"))
	}
	assert.False(t, l.Acquire("h"))
}

func TestHostOf(t *testing.T) {
	tests := []struct {
		url  string
		host string
		ok   bool
	}{
		{"https://manifests.example.com/team-a.yaml", "manifests.example.com", true},
		{"http://localhost:8080/m.yaml", "localhost", true},
		{"git+https://git.example.com/org/repo.git#main:deptrack.yaml", "git.example.com", true},
		{"not a url", "", false},
	}
	for _, tc := range tests {
		host, err := HostOf(tc.url)
		if !tc.ok {
			assert.Error(t, err, tc.url)
			continue
		}
		require.NoError(t, err, tc.url)
		assert.Equal(t, tc.host, host)
	}
}
