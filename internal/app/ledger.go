package app

import (
	"context"
	"sync"
)

// MemoryLedger is the default in-process dedupe ledger: a claim set keyed by
// review id. Entries are never evicted, so at-most-once handling holds for
// the lifetime of the process only.
type MemoryLedger struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{seen: make(map[string]struct{})}
}

// TryClaim records id and reports whether this caller won the claim.
func (l *MemoryLedger) TryClaim(_ context.Context, id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.seen[id]; ok {
		return false, nil
	}
	l.seen[id] = struct{}{}
	return true, nil
}

func (l *MemoryLedger) Size(_ context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.seen), nil
}
