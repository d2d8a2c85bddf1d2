package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"
)

// Keys are zero-padded so lexicographic key order equals append order.
const (
	waveKeyPrefix = "wave/"
	waveKeyFormat = "wave/%020d"
)

// pebbleValue is the stored representation of a wave. The index lives in
// the key, not the value.
type pebbleValue struct {
	Sender    string `json:"sender"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// PebbleLedger persists waves in a pebble database, one key per index.
// Appends are serialized by a process-wide mutex; every write is synced
// before Append returns, so a wave is either fully durable or absent.
type PebbleLedger struct {
	db     *pebble.DB
	logger *zap.Logger

	mu    sync.Mutex // serializes appends and guards count
	count int
}

// OpenPebble opens (or creates) the database in dir and recovers the
// wave count from the highest stored key.
func OpenPebble(dir string, logger *zap.Logger) (*PebbleLedger, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s: %w", dir, err)
	}

	l := &PebbleLedger{db: db, logger: logger}
	if err := l.recoverCount(); err != nil {
		db.Close() //nolint:errcheck
		return nil, err
	}

	logger.Info("pebble ledger opened",
		zap.String("dir", dir),
		zap.Int("waves", l.count),
	)
	return l, nil
}

// Close closes the underlying database.
func (l *PebbleLedger) Close() error {
	return l.db.Close()
}

func (l *PebbleLedger) recoverCount() error {
	iter, err := l.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(waveKeyPrefix),
		UpperBound: []byte(waveKeyPrefix + "~"),
	})
	if err != nil {
		return fmt.Errorf("recover wave count: %w", err)
	}
	defer iter.Close()

	if !iter.Last() {
		l.count = 0
		return iter.Error()
	}

	lastIdx, err := parseWaveKey(iter.Key())
	if err != nil {
		return fmt.Errorf("recover wave count: %w", err)
	}
	l.count = lastIdx + 1
	return iter.Error()
}

// Append implements Ledger.
func (l *PebbleLedger) Append(_ context.Context, sender, message string) (*Wave, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w := Wave{
		Index:     l.count,
		Sender:    sender,
		Message:   message,
		Timestamp: time.Now().Unix(),
	}

	val, err := json.Marshal(pebbleValue{
		Sender:    w.Sender,
		Message:   w.Message,
		Timestamp: w.Timestamp,
	})
	if err != nil {
		return nil, fmt.Errorf("encode wave: %w", err)
	}

	if err := l.db.Set(waveKey(w.Index), val, pebble.Sync); err != nil {
		return nil, fmt.Errorf("append wave %d: %w", w.Index, err)
	}
	// The count moves only after the write is synced, so a failed append
	// leaves no observable effect.
	l.count++
	return &w, nil
}

// Get implements Ledger.
func (l *PebbleLedger) Get(_ context.Context, index int) (*Wave, error) {
	l.mu.Lock()
	count := l.count
	l.mu.Unlock()

	if index < 0 || index >= count {
		return nil, ErrOutOfRange
	}

	val, closer, err := l.db.Get(waveKey(index))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrOutOfRange
		}
		return nil, fmt.Errorf("get wave %d: %w", index, err)
	}
	defer closer.Close()

	return decodeWave(index, val)
}

// All implements Ledger.
func (l *PebbleLedger) All(_ context.Context) ([]Wave, error) {
	l.mu.Lock()
	count := l.count
	l.mu.Unlock()

	iter, err := l.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(waveKeyPrefix),
		UpperBound: []byte(waveKeyPrefix + "~"),
	})
	if err != nil {
		return nil, fmt.Errorf("scan waves: %w", err)
	}
	defer iter.Close()

	out := make([]Wave, 0, count)
	for iter.First(); iter.Valid() && len(out) < count; iter.Next() {
		idx, err := parseWaveKey(iter.Key())
		if err != nil {
			return nil, fmt.Errorf("scan waves: %w", err)
		}
		w, err := decodeWave(idx, iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, *w)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("scan waves: %w", err)
	}
	return out, nil
}

// Count implements Ledger.
func (l *PebbleLedger) Count(_ context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count, nil
}

func waveKey(index int) []byte {
	return []byte(fmt.Sprintf(waveKeyFormat, index))
}

func parseWaveKey(key []byte) (int, error) {
	var idx int
	if _, err := fmt.Sscanf(string(key), waveKeyFormat, &idx); err != nil {
		return 0, fmt.Errorf("malformed wave key %q: %w", key, err)
	}
	return idx, nil
}

func decodeWave(index int, val []byte) (*Wave, error) {
	var v pebbleValue
	if err := json.Unmarshal(val, &v); err != nil {
		return nil, fmt.Errorf("decode wave %d: %w", index, err)
	}
	return &Wave{
		Index:     index,
		Sender:    v.Sender,
		Message:   v.Message,
		Timestamp: v.Timestamp,
	}, nil
}
