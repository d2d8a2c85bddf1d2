package ledger

import (
	"context"
	"sync"
	"time"
)

// MemoryLedger is an in-memory, thread-safe Ledger implementation.
// It is primarily useful for testing and for single-process deployments
// that do not require durable persistence across restarts.
type MemoryLedger struct {
	mu    sync.RWMutex
	waves []Wave
}

// NewMemory creates an empty MemoryLedger.
func NewMemory() *MemoryLedger {
	return &MemoryLedger{}
}

// Append implements Ledger.
func (l *MemoryLedger) Append(_ context.Context, sender, message string) (*Wave, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w := Wave{
		Index:     len(l.waves),
		Sender:    sender,
		Message:   message,
		Timestamp: time.Now().Unix(),
	}
	l.waves = append(l.waves, w)
	return &w, nil
}

// Get implements Ledger.
func (l *MemoryLedger) Get(_ context.Context, index int) (*Wave, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if index < 0 || index >= len(l.waves) {
		return nil, ErrOutOfRange
	}
	w := l.waves[index]
	return &w, nil
}

// All implements Ledger. The returned slice is a copy; mutating it has
// no effect on the ledger.
func (l *MemoryLedger) All(_ context.Context) ([]Wave, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Wave, len(l.waves))
	copy(out, l.waves)
	return out, nil
}

// Count implements Ledger.
func (l *MemoryLedger) Count(_ context.Context) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.waves), nil
}
