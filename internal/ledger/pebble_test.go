package ledger_test

import (
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"github.com/waveportal/waveledger/internal/ledger"
)

func openTestPebble(t *testing.T, dir string) *ledger.PebbleLedger {
	t.Helper()
	l, err := ledger.OpenPebble(dir, zap.NewNop())
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	return l
}

func TestPebble_appendAndRead(t *testing.T) {
	l := openTestPebble(t, t.TempDir())
	defer l.Close()

	w, err := l.Append(ctx, "alice", "Hello, Linea!")
	if err != nil {
		t.Fatal(err)
	}
	if w.Index != 0 {
		t.Errorf("first index: got %d, want 0", w.Index)
	}

	got, err := l.Get(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got.Sender != "alice" || got.Message != "Hello, Linea!" || got.Timestamp != w.Timestamp {
		t.Errorf("Get(0): got %+v, want %+v", got, w)
	}

	if _, err := l.Get(ctx, 1); !errors.Is(err, ledger.ErrOutOfRange) {
		t.Errorf("Get(1): got %v, want ErrOutOfRange", err)
	}
	if _, err := l.Get(ctx, -1); !errors.Is(err, ledger.ErrOutOfRange) {
		t.Errorf("Get(-1): got %v, want ErrOutOfRange", err)
	}
}

func TestPebble_countSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	l := openTestPebble(t, dir)
	const n = 25
	for i := 0; i < n; i++ {
		if _, err := l.Append(ctx, "alice", fmt.Sprintf("wave-%d", i)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened := openTestPebble(t, dir)
	defer reopened.Close()

	count, err := reopened.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != n {
		t.Fatalf("count after reopen: got %d, want %d", count, n)
	}

	// The next append must continue the sequence, not restart it.
	w, err := reopened.Append(ctx, "bob", "after reopen")
	if err != nil {
		t.Fatal(err)
	}
	if w.Index != n {
		t.Errorf("append after reopen: got index %d, want %d", w.Index, n)
	}
}

func TestPebble_allReturnsAppendOrder(t *testing.T) {
	l := openTestPebble(t, t.TempDir())
	defer l.Close()

	const n = 10
	for i := 0; i < n; i++ {
		_, _ = l.Append(ctx, "alice", fmt.Sprintf("wave-%d", i))
	}

	all, err := l.All(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != n {
		t.Fatalf("expected %d waves, got %d", n, len(all))
	}
	for i, w := range all {
		if w.Index != i {
			t.Errorf("position %d holds index %d", i, w.Index)
		}
		if w.Message != fmt.Sprintf("wave-%d", i) {
			t.Errorf("position %d holds message %q", i, w.Message)
		}
	}
}
