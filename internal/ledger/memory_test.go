package ledger_test

import (
	"context"
	"errors"
	"testing"

	"github.com/waveportal/waveledger/internal/ledger"
)

var ctx = context.Background()

func TestMemory_startsEmpty(t *testing.T) {
	l := ledger.NewMemory()

	n, err := l.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("expected empty ledger, got count %d", n)
	}

	all, err := l.All(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 0 {
		t.Errorf("expected no waves, got %d", len(all))
	}
}

func TestMemory_appendAssignsSequentialIndexes(t *testing.T) {
	l := ledger.NewMemory()

	w0, err := l.Append(ctx, "alice", "Hello, Linea!")
	if err != nil {
		t.Fatal(err)
	}
	if w0.Index != 0 {
		t.Errorf("first append: got index %d, want 0", w0.Index)
	}
	if w0.Timestamp == 0 {
		t.Error("timestamp not captured at append time")
	}

	w1, _ := l.Append(ctx, "bob", "Wave from Bob")
	if w1.Index != 1 {
		t.Errorf("second append: got index %d, want 1", w1.Index)
	}

	n, _ := l.Count(ctx)
	if n != 2 {
		t.Errorf("count: got %d, want 2", n)
	}
}

func TestMemory_getReturnsOriginalRecord(t *testing.T) {
	l := ledger.NewMemory()
	_, _ = l.Append(ctx, "alice", "Wave from Alice")
	_, _ = l.Append(ctx, "bob", "Wave from Bob")
	_, _ = l.Append(ctx, "alice", "Another wave from Alice")

	w, err := l.Get(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if w.Sender != "bob" || w.Message != "Wave from Bob" {
		t.Errorf("Get(1): got (%q, %q)", w.Sender, w.Message)
	}

	// Earlier records must be unchanged after further appends.
	w0, err := l.Get(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if w0.Sender != "alice" || w0.Message != "Wave from Alice" {
		t.Errorf("Get(0) after more appends: got (%q, %q)", w0.Sender, w0.Message)
	}
}

func TestMemory_getOutOfRange(t *testing.T) {
	l := ledger.NewMemory()
	_, _ = l.Append(ctx, "alice", "hi")

	if _, err := l.Get(ctx, 1); !errors.Is(err, ledger.ErrOutOfRange) {
		t.Errorf("Get(count): got %v, want ErrOutOfRange", err)
	}
	if _, err := l.Get(ctx, -1); !errors.Is(err, ledger.ErrOutOfRange) {
		t.Errorf("Get(-1): got %v, want ErrOutOfRange", err)
	}
}

func TestMemory_allIsSnapshotCopy(t *testing.T) {
	l := ledger.NewMemory()
	_, _ = l.Append(ctx, "alice", "original")

	all, _ := l.All(ctx)
	all[0].Message = "tampered"

	w, _ := l.Get(ctx, 0)
	if w.Message != "original" {
		t.Error("mutating the All() snapshot leaked into the ledger")
	}
}

func TestMemory_allPreservesAppendOrder(t *testing.T) {
	l := ledger.NewMemory()
	senders := []string{"alice", "bob", "alice"}
	messages := []string{"Wave from Alice", "Wave from Bob", "Another wave from Alice"}
	for i := range senders {
		_, _ = l.Append(ctx, senders[i], messages[i])
	}

	all, err := l.All(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 waves, got %d", len(all))
	}
	for i, w := range all {
		if w.Index != i {
			t.Errorf("wave %d has index %d", i, w.Index)
		}
		if w.Sender != senders[i] || w.Message != messages[i] {
			t.Errorf("wave %d: got (%q, %q), want (%q, %q)",
				i, w.Sender, w.Message, senders[i], messages[i])
		}
	}
}

func TestMemory_acceptsEmptyMessage(t *testing.T) {
	l := ledger.NewMemory()
	w, err := l.Append(ctx, "alice", "")
	if err != nil {
		t.Fatalf("empty message should be accepted: %v", err)
	}
	got, _ := l.Get(ctx, w.Index)
	if got.Message != "" {
		t.Errorf("expected empty message back, got %q", got.Message)
	}
}
