// Package hostlimit provides a process-wide admission counter that caps
// concurrent manifest fetches per hostname, so many teams pointing at the
// same manifest host cannot overwhelm it. It is best-effort admission
// control, not a queue: a rejected acquisition is reported immediately.
package hostlimit

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// DefaultMaxPerHost is the slot count used when none is configured.
const DefaultMaxPerHost = 3

// Limiter counts in-flight fetches per hostname. Each hostname gets an
// independent budget of max slots.
type Limiter struct {
	mu      sync.Mutex
	inUse   map[string]int
	maxSlot int
}

// New creates a limiter allowing max concurrent fetches per hostname.
func New(max int) *Limiter {
	if max <= 0 {
		max = DefaultMaxPerHost
	}
	return &Limiter{
		inUse:   make(map[string]int),
		maxSlot: max,
	}
}

// Acquire takes a slot for the hostname. Returns false when the host's
// budget is exhausted; the caller must not call Release in that case.
func (l *Limiter) Acquire(host string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.inUse[host] >= l.maxSlot {
		return false
	}
	l.inUse[host]++
	return true
}

// Release returns a previously acquired slot.
func (l *Limiter) Release(host string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.inUse[host] <= 1 {
		delete(l.inUse, host)
		return
	}
	l.inUse[host]--
}

// InFlight returns the current slot usage for a hostname.
func (l *Limiter) InFlight(host string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inUse[host]
}

// HostOf extracts the hostname a manifest URL will contact. The git+https
// scheme used for git-sourced manifests is reduced to its https host.
func HostOf(rawURL string) (string, error) {
	trimmed := strings.TrimPrefix(rawURL, "git+")
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("parse manifest url: %w", err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("manifest url %q has no hostname", rawURL)
	}
	return u.Hostname(), nil
}
