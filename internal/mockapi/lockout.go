package mockapi

import (
	"strings"
	"sync"
	"time"
)

// Login lockout defaults.
const (
	DefaultLockoutAttempts = 5
	DefaultLockoutWindow   = 15 * time.Minute
	DefaultLockoutDuration = 15 * time.Minute
)

// LockoutPolicy bounds failed logins per email and client address.
// Attempts <= 0 disables the lockout.
type LockoutPolicy struct {
	Attempts int
	Window   time.Duration
	Duration time.Duration
}

type failureRecord struct {
	count       int
	lastFailure time.Time
	lockedUntil time.Time
}

// lockout counts failed logins within a sliding window and hard-locks the
// key once the count reaches the policy limit.
type lockout struct {
	policy LockoutPolicy
	now    func() time.Time

	mu      sync.Mutex
	records map[string]*failureRecord
}

func newLockout(policy LockoutPolicy, now func() time.Time) *lockout {
	return &lockout{policy: policy, now: now, records: make(map[string]*failureRecord)}
}

func lockoutKey(email, ip string) string {
	return "auth:" + strings.ToLower(strings.TrimSpace(email)) + ":" + ip
}

// check reports whether key may attempt a login and, if not, how long to
// wait.
func (l *lockout) check(key string) (bool, time.Duration) {
	if l.policy.Attempts <= 0 {
		return true, 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[key]
	if !ok {
		return true, 0
	}
	now := l.now()
	if now.Before(rec.lockedUntil) {
		return false, rec.lockedUntil.Sub(now)
	}
	if now.Sub(rec.lastFailure) >= l.policy.Window {
		delete(l.records, key)
	}
	return true, 0
}

// recordFailure counts a failed attempt and reports whether it locked key.
func (l *lockout) recordFailure(key string) bool {
	if l.policy.Attempts <= 0 {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	rec, ok := l.records[key]
	if !ok || now.Sub(rec.lastFailure) >= l.policy.Window {
		rec = &failureRecord{}
		l.records[key] = rec
	}
	rec.count++
	rec.lastFailure = now
	if rec.count >= l.policy.Attempts {
		rec.lockedUntil = now.Add(l.policy.Duration)
		rec.count = 0
		return true
	}
	return false
}

func (l *lockout) clear(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.records, key)
}
