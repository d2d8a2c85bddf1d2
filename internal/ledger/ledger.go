package ledger

import (
	"context"
	"errors"
)

// ErrOutOfRange is returned by Get when the index is outside [0, count).
var ErrOutOfRange = errors.New("ledger: index out of range")

// Wave is a single appended record. The sender is an opaque,
// caller-supplied identity token; the ledger performs no validation on
// either field.
type Wave struct {
	Index     int    `json:"index"`
	Sender    string `json:"sender"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"` // Unix seconds, captured at append time
}

// Ledger is the interface for the append-only wave log.
type Ledger interface {
	// Append stores a new wave at index == Count() and returns it.
	// Appends are totally ordered; no index is ever skipped or reused.
	Append(ctx context.Context, sender, message string) (*Wave, error)

	// Get returns the wave at the given zero-based index, unchanged
	// since creation. Returns ErrOutOfRange for any index outside
	// [0, Count()).
	Get(ctx context.Context, index int) (*Wave, error)

	// All returns a snapshot of every wave in append order. The slice
	// reflects only appends that completed before the call began.
	All(ctx context.Context) ([]Wave, error)

	// Count returns the total number of appended waves.
	Count(ctx context.Context) (int, error)
}
