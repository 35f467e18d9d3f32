// Package applies submits applications and remembers which jobs were
// applied to during the life of the process.
package applies

import (
	"sort"
	"sync"
)

// Ledger is the set of composite keys applied to successfully.
type Ledger interface {
	Contains(key string) bool
	// Reserve claims key for one submission. It fails when key is already
	// recorded or another run holds the claim.
	Reserve(key string) bool
	// Release drops a claim without recording the key.
	Release(key string)
	// Insert records key and drops any claim on it.
	Insert(key string)
	Clear()
	Size() int
	Keys() []string
}

// MemoryLedger is a process-lifetime Ledger. It is safe for concurrent use
// by the scheduled and manual runs.
type MemoryLedger struct {
	mu       sync.RWMutex
	keys     map[string]struct{}
	inFlight map[string]struct{}
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		keys:     make(map[string]struct{}),
		inFlight: make(map[string]struct{}),
	}
}

func (l *MemoryLedger) Contains(key string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.keys[key]
	return ok
}

func (l *MemoryLedger) Reserve(key string) bool {
	if key == "" {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.keys[key]; ok {
		return false
	}
	if _, ok := l.inFlight[key]; ok {
		return false
	}
	l.inFlight[key] = struct{}{}
	return true
}

func (l *MemoryLedger) Release(key string) {
	l.mu.Lock()
	delete(l.inFlight, key)
	l.mu.Unlock()
}

func (l *MemoryLedger) Insert(key string) {
	if key == "" {
		return
	}
	l.mu.Lock()
	l.keys[key] = struct{}{}
	delete(l.inFlight, key)
	l.mu.Unlock()
}

// Clear forgets recorded keys. Claims held by a running submission survive.
func (l *MemoryLedger) Clear() {
	l.mu.Lock()
	l.keys = make(map[string]struct{})
	l.mu.Unlock()
}

func (l *MemoryLedger) Size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.keys)
}

// Keys returns a sorted copy of the recorded keys.
func (l *MemoryLedger) Keys() []string {
	l.mu.RLock()
	out := make([]string, 0, len(l.keys))
	for k := range l.keys {
		out = append(out, k)
	}
	l.mu.RUnlock()
	sort.Strings(out)
	return out
}
